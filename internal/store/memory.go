package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"seaguard/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	zones   []model.Zone
	zoneIdx map[string]int // id -> index into zones

	events []model.ComplianceEvent
	visits []model.ZoneVisit

	subs []model.Subscription

	deliveries map[string]*memDelivery
	deliverySeq []string // insertion order
}

func NewMemory() *Memory {
	return &Memory{
		zoneIdx:    map[string]int{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling and outcome state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

// Zones

func (m *Memory) ReplaceZones(ctx context.Context, zones []model.Zone) error {
	m.mu.Lock(); defer m.mu.Unlock()
	m.zones = append([]model.Zone(nil), zones...)
	m.zoneIdx = make(map[string]int, len(zones))
	for i, z := range m.zones {
		m.zoneIdx[z.ID] = i
	}
	return nil
}

func (m *Memory) ListZones(ctx context.Context) ([]model.Zone, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	return append([]model.Zone(nil), m.zones...), nil
}

func (m *Memory) GetZone(ctx context.Context, id string) (model.Zone, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	i, ok := m.zoneIdx[id]
	if !ok { return model.Zone{}, ErrNotFound }
	return m.zones[i], nil
}

// Compliance events

func (m *Memory) InsertEvents(ctx context.Context, events []model.ComplianceEvent) error {
	m.mu.Lock(); defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func matchEvent(ev model.ComplianceEvent, f EventFilter) bool {
	if f.AuvID != "" && ev.AuvID != f.AuvID { return false }
	if f.ZoneID != "" && ev.ZoneID != f.ZoneID { return false }
	if f.Type != "" && string(ev.Type) != f.Type { return false }
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) { return false }
	if !f.Until.IsZero() && ev.Timestamp.After(f.Until) { return false }
	return true
}

// ListEvents walks newest-first; the cursor is the id of the last event of
// the previous page.
func (m *Memory) ListEvents(ctx context.Context, f EventFilter) ([]model.ComplianceEvent, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	limit := f.Limit
	if limit <= 0 { limit = 100 }
	out := []model.ComplianceEvent{}
	skipping := f.Cursor != ""
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if skipping {
			if ev.ID == f.Cursor { skipping = false }
			continue
		}
		if matchEvent(ev, f) { out = append(out, ev) }
	}
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, nil
}

func (m *Memory) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	kept := m.events[:0]
	var removed int64
	for _, ev := range m.events {
		if ev.Timestamp.Before(cutoff) { removed++; continue }
		kept = append(kept, ev)
	}
	m.events = kept
	return removed, nil
}

// Zone visits

func (m *Memory) InsertZoneVisit(ctx context.Context, v model.ZoneVisit) error {
	m.mu.Lock(); defer m.mu.Unlock()
	if v.ID == "" { v.ID = uuid.New().String() }
	m.visits = append(m.visits, v)
	return nil
}

func (m *Memory) ListZoneVisits(ctx context.Context, auvID, zoneID, cursor string, limit int) ([]model.ZoneVisit, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 100 }
	out := []model.ZoneVisit{}
	skipping := cursor != ""
	for i := len(m.visits) - 1; i >= 0 && len(out) < limit; i-- {
		v := m.visits[i]
		if skipping {
			if v.ID == cursor { skipping = false }
			continue
		}
		if auvID != "" && v.AuvID != auvID { continue }
		if zoneID != "" && v.ZoneID != zoneID { continue }
		out = append(out, v)
	}
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, nil
}

// Reports

func (m *Memory) ComplianceReport(ctx context.Context, date string) (model.ComplianceReport, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	rep := model.ComplianceReport{
		Date:             date,
		EventsByType:     map[string]int{},
		ViolationsByZone: map[string]int{},
	}
	auvs := map[string]bool{}
	violators := map[string]bool{}
	for _, ev := range m.events {
		if ev.Timestamp.UTC().Format("2006-01-02") != date { continue }
		rep.TotalEvents++
		rep.EventsByType[string(ev.Type)]++
		auvs[ev.AuvID] = true
		if ev.Type == model.EventViolation {
			rep.ViolationsByZone[ev.ZoneID]++
			violators[ev.AuvID] = true
		}
	}
	rep.ActiveAuvs = len(auvs)
	rep.ComplianceRate = complianceRate(len(auvs), len(violators))
	return rep, nil
}

// complianceRate is the share of active vehicles with no violation that day.
func complianceRate(active, violators int) float64 {
	if active == 0 { return 1 }
	return float64(active-violators) / float64(active)
}

// Subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType { out = append(out, s); break }
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i := range m.subs {
			if m.subs[i].ID == cursor { start = i + 1; break }
		}
	}
	if limit <= 0 { limit = 100 }
	end := start + limit
	if end > len(m.subs) { end = len(m.subs) }
	items := append([]model.Subscription(nil), m.subs[start:end]...)
	next := ""
	if end < len(m.subs) && end > start { next = m.subs[end-1].ID }
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	out := m.subs[:0]
	found := false
	for _, s := range m.subs {
		if s.ID == id { found = true; continue }
		out = append(out, s)
	}
	m.subs = out
	if !found { return ErrNotFound }
	return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{
		ID: id, SubscriptionID: subscriptionID, EventType: eventType,
		URL: url, Secret: secret, Payload: payload, Status: "pending",
	}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliverySeq = append(m.deliverySeq, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliverySeq {
		d := m.deliveries[id]
		if d == nil { continue }
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit { break }
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil { return nil }
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(time.Minute) }
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil { return nil }
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.deliverySeq {
		d := m.deliveries[id]
		if d == nil { continue }
		if status != "" && d.Status != status { continue }
		item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
		if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
		if d.LastError != "" { item["lastError"] = d.LastError }
		out = append(out, item)
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil { return ErrNotFound }
	d.Status = "pending"
	d.NextAttemptAt = time.Now()
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
