package gis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"seaguard/internal/engine"
	"seaguard/internal/metrics"
	"seaguard/internal/model"
	"seaguard/internal/store"
)

// Syncer replaces the zone catalog from the configured sources. A sync is
// all-or-nothing: if any source fails, or the merged set fails validation,
// the previous catalog stays active and persisted.
type Syncer struct {
	Sources  []Source
	Engine   *engine.Engine
	Store    store.Store
	Interval time.Duration
	Stop     chan struct{}
}

func NewSyncer(sources []Source, eng *engine.Engine, st store.Store, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Syncer{
		Sources:  sources,
		Engine:   eng,
		Store:    st,
		Interval: interval,
		Stop:     make(chan struct{}),
	}
}

// SyncNow fetches every source, merges the sets and activates the result.
// Zone ids must be unique across sources; the engine rejects duplicates.
// Returns the number of zones activated.
func (s *Syncer) SyncNow(ctx context.Context) (int, error) {
	var zones []model.Zone
	for _, src := range s.Sources {
		zs, err := src.FetchZones(ctx)
		if err != nil {
			return 0, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		slog.Info("gis source fetched", "source", src.Name(), "zones", len(zs))
		zones = append(zones, zs...)
	}
	if err := s.Engine.LoadZones(zones); err != nil {
		return 0, err
	}
	metrics.ZonesLoaded.Set(float64(len(zones)))
	if err := s.Store.ReplaceZones(ctx, zones); err != nil {
		return 0, fmt.Errorf("persist zones: %w", err)
	}
	return len(zones), nil
}

// Start launches periodic syncs until Stop is closed. Failures are logged
// and retried on the next tick.
func (s *Syncer) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := s.SyncNow(ctx); err != nil {
					slog.Error("gis sync failed", "err", err)
				}
				cancel()
			}
		}
	}()
}
