package geo

import (
	"errors"
	"fmt"
	"time"

	"seaguard/internal/model"
)

// Snapshot is an immutable, fully validated zone set with its spatial index.
// Lookups never mutate it, so one snapshot can serve concurrent readers and
// a replacement set is swapped in wholesale instead of patched.
type Snapshot struct {
	Zones   []model.Zone
	BuiltAt time.Time

	byID   map[string]int
	bounds []Bounds
	grid   *gridIndex
}

// BuildSnapshot validates every zone and assembles the index. Any failure
// rejects the whole set: the caller keeps serving its previous snapshot.
// All invalid zones are reported together in one LoadError.
func BuildSnapshot(zones []model.Zone) (*Snapshot, error) {
	s := &Snapshot{
		Zones:   make([]model.Zone, len(zones)),
		BuiltAt: time.Now().UTC(),
		byID:    make(map[string]int, len(zones)),
		bounds:  make([]Bounds, len(zones)),
	}
	copy(s.Zones, zones)
	var failed []*ValidationError
	for i, z := range s.Zones {
		if err := ValidateZone(z); err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				ve = &ValidationError{ZoneID: z.ID, Reason: err.Error()}
			}
			failed = append(failed, ve)
			continue
		}
		if _, dup := s.byID[z.ID]; dup {
			failed = append(failed, &ValidationError{ZoneID: z.ID, Reason: "duplicate zone id"})
			continue
		}
		s.byID[z.ID] = i
		s.bounds[i] = geometryBounds(z.Geometry)
	}
	if len(failed) > 0 {
		return nil, &LoadError{Zones: failed}
	}
	s.grid = buildGrid(s.bounds)
	return s, nil
}

// MustSnapshot is a test helper for literal zone sets.
func MustSnapshot(zones []model.Zone) *Snapshot {
	s, err := BuildSnapshot(zones)
	if err != nil {
		panic(fmt.Sprintf("build snapshot: %v", err))
	}
	return s
}

// Containing returns the zones whose geometry contains p, in snapshot order.
// The grid narrows the search to candidates; the exact ring test decides.
func (s *Snapshot) Containing(p model.Point) []*model.Zone {
	var out []*model.Zone
	for _, i := range s.grid.candidates(p) {
		if !s.bounds[i].Contains(p) {
			continue
		}
		if GeometryContains(p, s.Zones[i].Geometry) {
			out = append(out, &s.Zones[i])
		}
	}
	return out
}

// ZoneByID resolves a zone by identifier.
func (s *Snapshot) ZoneByID(id string) (*model.Zone, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.Zones[i], true
}

// Len reports the number of zones in the snapshot.
func (s *Snapshot) Len() int { return len(s.Zones) }
