package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"seaguard/internal/engine"
	"seaguard/internal/geo"
	"seaguard/internal/metrics"
	"seaguard/internal/model"
	"seaguard/internal/store"
)

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	if limit <= 0 || limit > max {
		limit = def
	}
	return limit
}

// TelemetryHandler handles POST /v1/telemetry.
func (s *Server) TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !canIngest(p) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "role may not submit telemetry", r.URL.Path)
		return
	}
	if !s.Limiter.allowN(clientKey(r, p), 1) {
		writeProblem(w, http.StatusTooManyRequests, "Rate limited", "telemetry ingest rate exceeded", r.URL.Path)
		return
	}
	var sample model.PositionSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if !requireOwnTelemetry(p, sample.AuvID) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "vehicle tokens may only report their own telemetry", r.URL.Path)
		return
	}
	events, err := s.ProcessSample(r.Context(), "http", sample)
	if err != nil {
		var stale *engine.StaleSampleError
		var invalid *engine.InvalidSampleError
		switch {
		case errors.As(err, &stale):
			// Replayed delivery; acknowledged but ignored.
			writeJSON(w, http.StatusOK, map[string]any{"accepted": false, "stale": true, "events": []model.ComplianceEvent{}})
		case errors.As(err, &invalid):
			writeProblem(w, http.StatusBadRequest, "Invalid sample", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Processing failed", err.Error(), r.URL.Path)
		}
		return
	}
	if events == nil {
		events = []model.ComplianceEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "events": events})
}

// TelemetryBatchHandler handles POST /v1/telemetry/batch. Samples are
// processed in order; a bad sample is counted and skipped, it does not
// abort the batch.
func (s *Server) TelemetryBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !canIngest(p) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "role may not submit telemetry", r.URL.Path)
		return
	}
	var req struct {
		Samples []model.PositionSample `json:"samples"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if len(req.Samples) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "samples must not be empty", r.URL.Path)
		return
	}
	if !s.Limiter.allowN(clientKey(r, p), len(req.Samples)) {
		writeProblem(w, http.StatusTooManyRequests, "Rate limited", "telemetry ingest rate exceeded", r.URL.Path)
		return
	}
	accepted, rejected := 0, 0
	all := []model.ComplianceEvent{}
	for _, sample := range req.Samples {
		if !requireOwnTelemetry(p, sample.AuvID) {
			rejected++
			continue
		}
		events, err := s.ProcessSample(r.Context(), "http", sample)
		if err != nil {
			rejected++
			continue
		}
		accepted++
		all = append(all, events...)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": accepted, "rejected": rejected, "events": all})
}

// AuvsHandler handles GET /v1/auvs.
func (s *Server) AuvsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items := s.Engine.Vehicles()
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// AuvByIDHandler handles GET /v1/auvs/{id}/status and /v1/auvs/{id}/visits.
func (s *Server) AuvByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/auvs/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeProblem(w, http.StatusNotFound, "Not found", "", r.URL.Path)
		return
	}
	id := parts[0]
	switch parts[1] {
	case "status":
		st, ok := s.Engine.Status(id)
		if !ok {
			writeProblem(w, http.StatusNotFound, "Unknown AUV", "no telemetry seen for "+id, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case "visits":
		limit := parseLimit(r, 50, 500)
		items, next, err := s.Store.ListZoneVisits(r.Context(), id, r.URL.Query().Get("zoneId"), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		writeProblem(w, http.StatusNotFound, "Not found", "", r.URL.Path)
	}
}

// ZonesHandler handles GET and PUT /v1/zones. PUT replaces the whole
// catalog: the engine validates and activates the set first, then the store
// persists it. A set that fails validation changes nothing.
func (s *Server) ZonesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		zones, err := s.Store.ListZones(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": zones, "count": len(zones)})
	case http.MethodPut:
		p := s.getPrincipal(r)
		if !canManageZones(p) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "zone management requires admin or operator", r.URL.Path)
			return
		}
		zones, err := decodeZonesPayload(r.Body)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid zones payload", err.Error(), r.URL.Path)
			return
		}
		if err := s.Engine.LoadZones(zones); err != nil {
			errs := []string{err.Error()}
			var le *geo.LoadError
			if errors.As(err, &le) {
				errs = errs[:0]
				for _, ze := range le.Zones {
					errs = append(errs, ze.Error())
				}
			}
			writeValidationProblem(w, http.StatusUnprocessableEntity, "Zone set rejected", r.URL.Path, errs)
			return
		}
		metrics.ZonesLoaded.Set(float64(len(zones)))
		if err := s.Store.ReplaceZones(r.Context(), zones); err != nil {
			// The set is active in the engine but will not survive a
			// restart; surface that loudly.
			writeProblem(w, http.StatusInternalServerError, "Persist failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"loaded": len(zones)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ZoneByIDHandler handles GET /v1/zones/{id}.
func (s *Server) ZoneByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/zones/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not found", "", r.URL.Path)
		return
	}
	z, err := s.Store.GetZone(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Unknown zone", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Lookup failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, z)
}

// EventsHandler handles GET /v1/events.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	f := store.EventFilter{
		AuvID:  q.Get("auvId"),
		ZoneID: q.Get("zoneId"),
		Type:   q.Get("type"),
		Cursor: q.Get("cursor"),
		Limit:  parseLimit(r, 50, 500),
	}
	if f.Type != "" && !validEventType(f.Type) {
		writeProblem(w, http.StatusBadRequest, "Invalid filter", "unknown event type "+f.Type, r.URL.Path)
		return
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid filter", name+" must be RFC3339", r.URL.Path)
				return
			}
			*dst = t
		}
	}
	items, next, err := s.Store.ListEvents(r.Context(), f)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// SubscriptionsHandler handles POST and GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	switch r.Method {
	case http.MethodPost:
		if !canManageZones(p) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "subscriptions require admin or operator", r.URL.Path)
			return
		}
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSubscriptionRequest(req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		if !canManageZones(p) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "subscriptions require admin or operator", r.URL.Path)
			return
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), r.URL.Query().Get("cursor"), parseLimit(r, 50, 500))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List failed", err.Error(), r.URL.Path)
			return
		}
		for i := range items {
			items[i].Secret = ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !canManageZones(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "subscriptions require admin or operator", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Unknown subscription", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin only", r.URL.Path)
		return
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), parseLimit(r, 50, 500))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry.
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin only", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Unknown delivery", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Retry failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// ZoneSyncHandler handles POST /v1/admin/zones/sync.
func (s *Server) ZoneSyncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin only", r.URL.Path)
		return
	}
	if s.Syncer == nil {
		writeProblem(w, http.StatusServiceUnavailable, "No GIS sources", "no gisSources configured", r.URL.Path)
		return
	}
	n, err := s.Syncer.SyncNow(r.Context())
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Sync failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loaded": n})
}

// ComplianceReportHandler handles GET /v1/admin/reports/compliance.
func (s *Server) ComplianceReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin only", r.URL.Path)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD", r.URL.Path)
		return
	}
	rep, err := s.Store.ComplianceReport(r.Context(), date)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Report failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// EventsCleanupHandler handles POST /v1/admin/events/cleanup. With no body
// the configured retention window applies.
func (s *Server) EventsCleanupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin only", r.URL.Path)
		return
	}
	var req struct {
		OlderThanDays int `json:"olderThanDays"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	days := req.OlderThanDays
	if days == 0 {
		days = s.Cfg.RetentionDays
	}
	if days <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "olderThanDays must be positive", r.URL.Path)
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := s.Store.DeleteEventsBefore(r.Context(), cutoff)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Cleanup failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "olderThanDays": days})
}

// HealthHandler handles GET /healthz.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ReadyHandler handles GET /readyz. Ready means the store answers a ping
// within 500ms.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
