package engine

import (
	"sort"
	"time"

	"seaguard/internal/metrics"
	"seaguard/internal/model"
)

// Sweep re-evaluates every active membership at now, catching budget
// crossings for vehicles that have gone quiet between fixes. It never opens
// or closes memberships and never advances a vehicle's telemetry clock, so
// a sweep and a sample can interleave in any order. Memberships whose zone
// vanished in a reload are skipped; the next sample closes them.
func (e *Engine) Sweep(now time.Time) []model.ComplianceEvent {
	e.mu.Lock()
	vehicles := make([]*vehicleState, 0, len(e.vehicles))
	for _, vs := range e.vehicles {
		vehicles = append(vehicles, vs)
	}
	e.mu.Unlock()
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].auvID < vehicles[j].auvID })

	snap := e.snap.Load()
	var out []model.ComplianceEvent
	for _, vs := range vehicles {
		vs.mu.Lock()
		for _, zoneID := range vs.sortedZoneIDs() {
			m := vs.memberships[zoneID]
			z, ok := snap.ZoneByID(zoneID)
			if !ok || !z.HasBudget() {
				continue
			}
			asOf := now
			if asOf.Before(m.lastSeen) {
				asOf = m.lastSeen
			}
			m.cumulative = asOf.Sub(m.entry).Minutes()
			if ev, fired := e.checkBudget(vs.auvID, m, z, asOf, vs.lastPosition, vs.lastDepth); fired {
				out = append(out, ev)
			}
		}
		vs.mu.Unlock()
	}
	for _, ev := range out {
		if ev.Type == model.EventViolation {
			e.log.Warn("dwell budget exceeded during sweep",
				"auv", ev.AuvID, "zone", ev.ZoneID, "minutes", ev.DurationMinutes)
		}
	}
	return out
}

// Sweeper runs Sweep on a fixed interval and hands any events it surfaces
// to the dispatch sink.
type Sweeper struct {
	Engine   *Engine
	Interval time.Duration
	Dispatch func([]model.ComplianceEvent)
	Stop     chan struct{}
}

func NewSweeper(e *Engine, interval time.Duration, dispatch func([]model.ComplianceEvent)) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{Engine: e, Interval: interval, Dispatch: dispatch, Stop: make(chan struct{})}
}

func (s *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				s.runOnce()
			}
		}
	}()
}

func (s *Sweeper) runOnce() {
	events := s.Engine.Sweep(time.Now())
	metrics.SweepRuns.Inc()
	if len(events) > 0 && s.Dispatch != nil {
		s.Dispatch(events)
	}
}
