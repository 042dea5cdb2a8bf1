package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"seaguard/internal/auth"
	"seaguard/internal/config"
	"seaguard/internal/engine"
	"seaguard/internal/metrics"
	"seaguard/internal/model"
	"seaguard/internal/store"
	"seaguard/internal/webhooks"
)

// EventProducer forwards compliance events to an external stream. Wired to
// Kafka when brokers are configured, nil otherwise.
type EventProducer interface {
	PublishEvents(ctx context.Context, events []model.ComplianceEvent) error
}

// ZoneSyncer pulls the zone catalog from configured GIS sources.
type ZoneSyncer interface {
	SyncNow(ctx context.Context) (int, error)
}

// Server wires the engine to persistence, auth, streaming and webhooks.
type Server struct {
	Store    store.Store
	Engine   *engine.Engine
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Live     *store.Live
	Producer EventProducer
	Syncer   ZoneSyncer
	Limiter  *clientLimiter
	Cfg      config.Config
}

// NewServer builds a server from config. With no DATABASE_URL it runs on
// the in-memory store; with no REDIS_URL streaming stays in-process.
func NewServer(cfg config.Config, eng *engine.Engine) (*Server, error) {
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
		slog.Info("store: in-memory")
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := pg.MigrateDir(cfg.MigrationsDir); err != nil {
				return nil, err
			}
		}
		st = pg
		slog.Info("store: postgres")
	}

	var broker EventBroker
	var live *store.Live
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis broker unavailable, falling back to in-process", "err", err)
			broker = NewBroker()
		} else {
			broker = rb
			slog.Info("broker: redis")
		}
		lv, err := store.NewLive(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis live mirror unavailable", "err", err)
		} else {
			live = lv
		}
	} else {
		broker = NewBroker()
	}

	return &Server{
		Store:   st,
		Engine:  eng,
		Pub:     webhooks.NewPublisher(st),
		Auth:    auth.NewVerifierFromEnv(),
		Broker:  broker,
		Live:    live,
		Limiter: newClientLimiter(cfg.RateRPS, cfg.RateBurst),
		Cfg:     cfg,
	}, nil
}

// NewWebhookWorker returns the delivery worker bound to this server's store.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}

// ProcessSample runs one telemetry fix through the engine and dispatches
// whatever events it produced. source labels the ingest path in metrics
// ("http" or "kafka"). Stale and invalid samples come back as the engine's
// typed errors with nothing dispatched.
func (s *Server) ProcessSample(ctx context.Context, source string, sample model.PositionSample) ([]model.ComplianceEvent, error) {
	start := time.Now()
	events, err := s.Engine.Process(sample)
	metrics.SampleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		var stale *engine.StaleSampleError
		var invalid *engine.InvalidSampleError
		switch {
		case errors.As(err, &stale):
			outcome = "stale"
		case errors.As(err, &invalid):
			outcome = "invalid"
		}
		metrics.SamplesProcessed.WithLabelValues(source, outcome).Inc()
		return nil, err
	}
	metrics.SamplesProcessed.WithLabelValues(source, "ok").Inc()
	s.DispatchEvents(ctx, events)
	if s.Live != nil {
		if st, ok := s.Engine.Status(sample.AuvID); ok {
			if err := s.Live.UpdateVehicle(ctx, st); err != nil {
				slog.Debug("live mirror update failed", "err", err, "auv", sample.AuvID)
			}
		}
	}
	return events, nil
}

// DispatchEvents persists engine events and fans them out to every sink:
// visit history on exits, the stream broker (per-vehicle channel plus the
// firehose), the webhook queue, metrics, and the optional Kafka producer.
// Persistence failures are logged, not propagated; the engine has already
// committed the state transition and the sample response should say so.
func (s *Server) DispatchEvents(ctx context.Context, events []model.ComplianceEvent) {
	if len(events) == 0 {
		return
	}
	if err := s.Store.InsertEvents(ctx, events); err != nil {
		slog.Error("persist events", "err", err, "count", len(events))
	}
	for _, ev := range events {
		metrics.ComplianceEvents.WithLabelValues(string(ev.Type), ev.ZoneID).Inc()
		switch ev.Type {
		case model.EventEntry:
			metrics.ActiveMemberships.WithLabelValues(ev.ZoneID).Inc()
		case model.EventExit:
			metrics.ActiveMemberships.WithLabelValues(ev.ZoneID).Dec()
			visit := model.ZoneVisit{
				ID:              uuid.New().String(),
				AuvID:           ev.AuvID,
				ZoneID:          ev.ZoneID,
				EntryTime:       ev.Timestamp.Add(-time.Duration(ev.DurationMinutes * float64(time.Minute))),
				ExitTime:        ev.Timestamp,
				DurationMinutes: ev.DurationMinutes,
			}
			if err := s.Store.InsertZoneVisit(ctx, visit); err != nil {
				slog.Error("persist zone visit", "err", err, "auv", ev.AuvID, "zone", ev.ZoneID)
			}
		}
		evt := StreamEvent{Type: string(ev.Type), Data: eventPayload(ev)}
		s.Broker.Publish(ev.AuvID, evt)
		s.Broker.Publish(firehoseChannel, evt)
		s.Pub.Emit(ctx, ev)
	}
	if s.Producer != nil {
		if err := s.Producer.PublishEvents(ctx, events); err != nil {
			slog.Error("kafka publish", "err", err, "count", len(events))
		}
	}
}

func eventPayload(ev model.ComplianceEvent) map[string]any {
	d := map[string]any{
		"id":        ev.ID,
		"auvId":     ev.AuvID,
		"zoneId":    ev.ZoneID,
		"type":      string(ev.Type),
		"timestamp": ev.Timestamp.UTC().Format(time.RFC3339Nano),
		"lat":       ev.Position.Lat,
		"lon":       ev.Position.Lon,
		"depth":     ev.Depth,
	}
	if ev.ZoneName != "" {
		d["zoneName"] = ev.ZoneName
	}
	if ev.DurationMinutes > 0 {
		d["durationMinutes"] = ev.DurationMinutes
	}
	if ev.Detail != "" {
		d["detail"] = ev.Detail
	}
	return d
}

// Middleware adds request logging and Prometheus accounting around the mux.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)
		route := routeLabel(r.URL.Path)
		code := strconv.Itoa(sw.code)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route, code).Observe(elapsed.Seconds())
		slog.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.code, "dur", elapsed.Round(time.Microsecond).String())
	})
}

// statusWriter records the status code and forwards Flush and Hijack so the
// SSE stream and the WebSocket upgrade keep working behind the middleware.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// routeLabel collapses path parameters so metrics cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/auvs/"):
		if strings.HasSuffix(path, "/visits") {
			return "/v1/auvs/{id}/visits"
		}
		return "/v1/auvs/{id}/status"
	case strings.HasPrefix(path, "/v1/zones/"):
		return "/v1/zones/{id}"
	case strings.HasPrefix(path, "/v1/subscriptions/"):
		return "/v1/subscriptions/{id}"
	case strings.HasPrefix(path, "/v1/admin/webhook-deliveries/"):
		return "/v1/admin/webhook-deliveries/{id}/retry"
	case strings.HasPrefix(path, "/static/"):
		return "/static"
	default:
		return path
	}
}
