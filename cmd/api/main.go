package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seaguard/internal/api"
	"seaguard/internal/config"
	"seaguard/internal/engine"
	"seaguard/internal/gis"
	"seaguard/internal/ingest"
	"seaguard/internal/metrics"
	"seaguard/internal/model"
)

func main() {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Config{WarningRatio: cfg.WarningRatio})
	server, err := api.NewServer(cfg, eng)
	if err != nil {
		slog.Error("server init failed", "err", err)
		os.Exit(1)
	}
	metrics.RegisterDefault()

	bootZones(server, eng, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := server.NewWebhookWorker()
	worker.Start()
	defer close(worker.Stop)

	sweeper := engine.NewSweeper(eng, cfg.SweepInterval.Std(), func(events []model.ComplianceEvent) {
		server.DispatchEvents(context.Background(), events)
	})
	sweeper.Start()
	defer close(sweeper.Stop)

	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaEvents)
		server.Producer = producer
		defer producer.Close()

		consumer := ingest.NewConsumer(ingest.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroup,
		}, server)
		go consumer.Run(ctx)
		defer consumer.Close()
	}

	if len(cfg.GISSources) > 0 {
		syncer := gis.NewSyncer(gisSources(cfg), eng, server.Store, cfg.GISSyncInterval.Std())
		server.Syncer = syncer
		if _, err := syncer.SyncNow(ctx); err != nil {
			slog.Error("initial gis sync failed", "err", err)
		}
		syncer.Start()
		defer close(syncer.Stop)
	}

	if cfg.RetentionDays > 0 {
		go retentionLoop(ctx, server, cfg.RetentionDays)
	}

	mux := http.NewServeMux()

	// Telemetry ingest
	mux.HandleFunc("/v1/telemetry", server.TelemetryHandler)
	mux.HandleFunc("/v1/telemetry/batch", server.TelemetryBatchHandler)

	// Vehicles
	mux.HandleFunc("/v1/auvs", server.AuvsHandler)
	mux.HandleFunc("/v1/auvs/", server.AuvByIDHandler) // /status, /visits

	// Zones
	mux.HandleFunc("/v1/zones", server.ZonesHandler)
	mux.HandleFunc("/v1/zones/", server.ZoneByIDHandler)

	// Events: history plus the two live feeds
	mux.HandleFunc("/v1/events", server.EventsHandler)
	mux.HandleFunc("/v1/events/stream", server.EventsStreamHandler)
	mux.HandleFunc("/v1/events/ws", server.EventsWSHandler)

	// Webhook subscriptions
	mux.HandleFunc("/v1/subscriptions", server.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", server.SubscriptionByIDHandler)

	// Admin
	mux.HandleFunc("/v1/admin/webhook-deliveries", server.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/", server.WebhookDeliveryRetryHandler)
	mux.HandleFunc("/v1/admin/zones/sync", server.ZoneSyncHandler)
	mux.HandleFunc("/v1/admin/reports/compliance", server.ComplianceReportHandler)
	mux.HandleFunc("/v1/admin/events/cleanup", server.EventsCleanupHandler)

	// Operational surface
	mux.HandleFunc("/healthz", server.HealthHandler)
	mux.HandleFunc("/readyz", server.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debugz", server.DebugHandler)

	// Docs
	mux.HandleFunc("/openapi.yaml", server.OpenAPIHandler)
	mux.HandleFunc("/docs", server.DocsHandler)
	mux.HandleFunc("/console", server.SwaggerHandler)
	mux.HandleFunc("/static/", server.StaticHandler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("api listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown incomplete", "err", err)
	}
}

// bootZones restores the active catalog on startup: the stored set wins,
// an optional seed file covers first boot with an empty store.
func bootZones(server *api.Server, eng *engine.Engine, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	zones, err := server.Store.ListZones(ctx)
	if err != nil {
		slog.Error("read stored zones", "err", err)
	}
	if len(zones) == 0 && cfg.ZoneFile != "" {
		seed := gis.NewFileSource("seed", cfg.ZoneFile)
		zones, err = seed.FetchZones(ctx)
		if err != nil {
			slog.Error("read seed zones", "err", err, "path", cfg.ZoneFile)
			return
		}
		if err := server.Store.ReplaceZones(ctx, zones); err != nil {
			slog.Error("persist seed zones", "err", err)
		}
	}
	if len(zones) == 0 {
		slog.Warn("no zones configured; telemetry will be tracked but nothing enforced")
		return
	}
	if err := eng.LoadZones(zones); err != nil {
		slog.Error("activate zones", "err", err)
		return
	}
	metrics.ZonesLoaded.Set(float64(len(zones)))
}

func gisSources(cfg config.Config) []gis.Source {
	out := make([]gis.Source, 0, len(cfg.GISSources))
	for _, sc := range cfg.GISSources {
		switch sc.Kind {
		case "arcgis":
			out = append(out, gis.NewArcGISSource(sc.Name, sc.URL, gis.ZoneDefaults{
				Type:               model.ZoneType(sc.ZoneType),
				MaxDurationMinutes: sc.MaxDurationMinutes,
				DepthMin:           sc.DepthMin,
				DepthMax:           sc.DepthMax,
			}))
		case "file":
			out = append(out, gis.NewFileSource(sc.Name, sc.Path))
		}
	}
	return out
}

// retentionLoop purges events past the retention window once a day.
func retentionLoop(ctx context.Context, server *api.Server, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			opCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := server.Store.DeleteEventsBefore(opCtx, cutoff)
			cancel()
			if err != nil {
				slog.Error("retention cleanup failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("retention cleanup", "deleted", n, "olderThanDays", days)
			}
		}
	}
}
