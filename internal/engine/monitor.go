package engine

import (
	"sort"
	"sync"
	"time"

	"seaguard/internal/model"
)

// membership is the live record of one vehicle inside one zone. Zone name
// and type are copied at entry so the exit event stays well formed even if
// the zone disappears in a reload mid-crossing.
type membership struct {
	zoneID     string
	zoneName   string
	zoneType   model.ZoneType
	entry      time.Time
	lastSeen   time.Time
	cumulative float64 // minutes, recomputed from entry each evaluation
	status     model.ComplianceStatus
	depthAlert bool // sticky for the crossing
}

func (m *membership) view(auvID string) model.ZoneMembership {
	return model.ZoneMembership{
		AuvID:                     auvID,
		ZoneID:                    m.zoneID,
		ZoneName:                  m.zoneName,
		ZoneType:                  m.zoneType,
		EntryTime:                 m.entry,
		LastSeenTime:              m.lastSeen,
		CumulativeDurationMinutes: m.cumulative,
		Status:                    m.status,
		DepthAlert:                m.depthAlert,
	}
}

// vehicleState serializes all processing for one vehicle. The engine locks
// it for the full span of a sample or a sweep evaluation.
type vehicleState struct {
	mu            sync.Mutex
	auvID         string
	lastTimestamp time.Time
	lastPosition  model.Point
	lastDepth     float64
	memberships   map[string]*membership
}

func newVehicleState(auvID string) *vehicleState {
	return &vehicleState{auvID: auvID, memberships: make(map[string]*membership)}
}

// status builds the vehicle view. Caller holds vs.mu.
func (vs *vehicleState) status() model.AuvStatus {
	st := model.AuvStatus{
		AuvID:         vs.auvID,
		OverallStatus: model.StatusCompliant,
		LastPosition:  vs.lastPosition,
		LastDepth:     vs.lastDepth,
		LastSeen:      vs.lastTimestamp,
	}
	for _, m := range vs.memberships {
		st.Memberships = append(st.Memberships, m.view(vs.auvID))
		if m.status.Worse(st.OverallStatus) {
			st.OverallStatus = m.status
		}
	}
	sort.Slice(st.Memberships, func(i, j int) bool {
		return st.Memberships[i].ZoneID < st.Memberships[j].ZoneID
	})
	return st
}

// sortedZoneIDs gives membership iteration a stable order. Caller holds vs.mu.
func (vs *vehicleState) sortedZoneIDs() []string {
	ids := make([]string, 0, len(vs.memberships))
	for id := range vs.memberships {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
