package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"seaguard/internal/geo"
	"seaguard/internal/model"
)

// DefaultWarningRatio is the budget fraction at which a warning fires.
const DefaultWarningRatio = 0.8

// Config tunes a new engine. Zero values take defaults.
type Config struct {
	// WarningRatio must sit in (0, 1); anything else falls back to the
	// default of 0.8.
	WarningRatio float64
	Logger       *slog.Logger
}

// Engine owns all live compliance state: the active zone snapshot and one
// tracker per vehicle.
type Engine struct {
	warnRatio float64
	log       *slog.Logger

	snap atomic.Pointer[geo.Snapshot]

	mu       sync.Mutex
	vehicles map[string]*vehicleState
}

// New builds an engine with an empty zone set.
func New(cfg Config) *Engine {
	if cfg.WarningRatio <= 0 || cfg.WarningRatio >= 1 {
		cfg.WarningRatio = DefaultWarningRatio
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		warnRatio: cfg.WarningRatio,
		log:       cfg.Logger,
		vehicles:  make(map[string]*vehicleState),
	}
	snap, _ := geo.BuildSnapshot(nil)
	e.snap.Store(snap)
	return e
}

// LoadZones validates the replacement set and, only if every zone passes,
// swaps it in atomically. On any error the previous snapshot stays active.
// In-flight samples finish against whichever snapshot they loaded.
func (e *Engine) LoadZones(zones []model.Zone) error {
	snap, err := geo.BuildSnapshot(zones)
	if err != nil {
		return err
	}
	e.snap.Store(snap)
	e.log.Info("zone set activated", "zones", snap.Len())
	return nil
}

// Snapshot returns the currently active zone set.
func (e *Engine) Snapshot() *geo.Snapshot { return e.snap.Load() }

func (e *Engine) vehicle(auvID string) *vehicleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	vs, ok := e.vehicles[auvID]
	if !ok {
		vs = newVehicleState(auvID)
		e.vehicles[auvID] = vs
	}
	return vs
}

// Process evaluates one telemetry fix against the active snapshot and
// returns the events it produced: exits first, then entries, then budget
// crossings, each group ordered by zone id.
func (e *Engine) Process(sample model.PositionSample) ([]model.ComplianceEvent, error) {
	if err := sample.Valid(); err != nil {
		return nil, &InvalidSampleError{AuvID: sample.AuvID, Err: err}
	}
	vs := e.vehicle(sample.AuvID)
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if !vs.lastTimestamp.IsZero() && !sample.Timestamp.After(vs.lastTimestamp) {
		return nil, &StaleSampleError{AuvID: sample.AuvID, Timestamp: sample.Timestamp, Last: vs.lastTimestamp}
	}

	snap := e.snap.Load()
	pos := sample.Position()
	current := make(map[string]*model.Zone)
	for _, z := range snap.Containing(pos) {
		current[z.ID] = z
	}

	var events []model.ComplianceEvent

	for _, zoneID := range vs.sortedZoneIDs() {
		if _, still := current[zoneID]; still {
			continue
		}
		m := vs.memberships[zoneID]
		dwell := sample.Timestamp.Sub(m.entry).Minutes()
		ev := newEvent(model.EventExit, sample.AuvID, m.zoneID, m.zoneName, sample.Timestamp, pos, sample.Depth, dwell)
		if m.depthAlert {
			ev.Detail = "depth band deviation during crossing"
		}
		events = append(events, ev)
		delete(vs.memberships, zoneID)
	}

	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var crossings []model.ComplianceEvent
	for _, id := range ids {
		z := current[id]
		m, tracked := vs.memberships[id]
		if !tracked {
			m = &membership{
				zoneID:   z.ID,
				zoneName: z.Name,
				zoneType: z.Type,
				entry:    sample.Timestamp,
				lastSeen: sample.Timestamp,
				status:   model.StatusCompliant,
			}
			if !z.DepthInBand(sample.Depth) {
				m.depthAlert = true
			}
			vs.memberships[id] = m
			ev := newEvent(model.EventEntry, sample.AuvID, z.ID, z.Name, sample.Timestamp, pos, sample.Depth, 0)
			if m.depthAlert {
				ev.Detail = "entered outside zone depth band"
			}
			events = append(events, ev)
			continue
		}
		m.lastSeen = sample.Timestamp
		m.cumulative = sample.Timestamp.Sub(m.entry).Minutes()
		if !z.DepthInBand(sample.Depth) {
			m.depthAlert = true
		}
		if ev, fired := e.checkBudget(sample.AuvID, m, z, sample.Timestamp, pos, sample.Depth); fired {
			crossings = append(crossings, ev)
		}
	}
	events = append(events, crossings...)

	vs.lastTimestamp = sample.Timestamp
	vs.lastPosition = pos
	vs.lastDepth = sample.Depth

	for _, ev := range events {
		if ev.Type == model.EventViolation {
			e.log.Warn("dwell budget exceeded",
				"auv", ev.AuvID, "zone", ev.ZoneID, "minutes", ev.DurationMinutes)
		}
	}
	return events, nil
}

// checkBudget upgrades a membership's standing against the zone's dwell
// budget. Standing never demotes during a crossing and each level fires at
// most once; a sparse track can jump straight to violation.
func (e *Engine) checkBudget(auvID string, m *membership, z *model.Zone, asOf time.Time, pos model.Point, depth float64) (model.ComplianceEvent, bool) {
	if !z.HasBudget() || m.status == model.StatusViolation {
		return model.ComplianceEvent{}, false
	}
	ratio := m.cumulative / z.MaxDurationMinutes
	if ratio >= 1 {
		m.status = model.StatusViolation
		ev := newEvent(model.EventViolation, auvID, z.ID, m.zoneName, asOf, pos, depth, m.cumulative)
		ev.Detail = fmt.Sprintf("dwell %.1f min exceeds budget of %.0f min", m.cumulative, z.MaxDurationMinutes)
		return ev, true
	}
	if ratio >= e.warnRatio && m.status == model.StatusCompliant {
		m.status = model.StatusWarning
		ev := newEvent(model.EventWarning, auvID, z.ID, m.zoneName, asOf, pos, depth, m.cumulative)
		ev.Detail = fmt.Sprintf("dwell %.1f min at %.0f%% of %.0f min budget", m.cumulative, ratio*100, z.MaxDurationMinutes)
		return ev, true
	}
	return model.ComplianceEvent{}, false
}

// Status reports one vehicle's live standing. ok is false for vehicles the
// engine has never seen.
func (e *Engine) Status(auvID string) (model.AuvStatus, bool) {
	e.mu.Lock()
	vs, ok := e.vehicles[auvID]
	e.mu.Unlock()
	if !ok {
		return model.AuvStatus{}, false
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.status(), true
}

// Vehicles lists every tracked vehicle ordered by id.
func (e *Engine) Vehicles() []model.AuvStatus {
	e.mu.Lock()
	all := make([]*vehicleState, 0, len(e.vehicles))
	for _, vs := range e.vehicles {
		all = append(all, vs)
	}
	e.mu.Unlock()

	out := make([]model.AuvStatus, 0, len(all))
	for _, vs := range all {
		vs.mu.Lock()
		out = append(out, vs.status())
		vs.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuvID < out[j].AuvID })
	return out
}

func newEvent(t model.EventType, auvID, zoneID, zoneName string, ts time.Time, pos model.Point, depth, dwell float64) model.ComplianceEvent {
	return model.ComplianceEvent{
		ID:              uuid.New().String(),
		AuvID:           auvID,
		ZoneID:          zoneID,
		ZoneName:        zoneName,
		Type:            t,
		Timestamp:       ts,
		Position:        pos,
		Depth:           depth,
		DurationMinutes: dwell,
	}
}
