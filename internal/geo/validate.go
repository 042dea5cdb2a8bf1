package geo

import (
	"fmt"
	"strings"

	"seaguard/internal/model"
)

// ValidationError identifies the zone that failed configuration validation.
type ValidationError struct {
	ZoneID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ZoneID == "" {
		return "zone validation: " + e.Reason
	}
	return fmt.Sprintf("zone %s: %s", e.ZoneID, e.Reason)
}

// LoadError collects every zone that failed validation in one load, so a
// caller fixing a large catalog sees all offenders in one round trip.
type LoadError struct {
	Zones []*ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Zones) == 1 {
		return e.Zones[0].Error()
	}
	ids := make([]string, 0, len(e.Zones))
	for _, ze := range e.Zones {
		id := ze.ZoneID
		if id == "" {
			id = "(no id)"
		}
		ids = append(ids, id)
	}
	return fmt.Sprintf("%d zones failed validation: %s", len(e.Zones), strings.Join(ids, ", "))
}

func (e *LoadError) Unwrap() []error {
	out := make([]error, len(e.Zones))
	for i, ze := range e.Zones {
		out[i] = ze
	}
	return out
}

// ValidateZone checks one zone's attributes and geometry. Rings need at
// least three distinct vertices and must be simple.
func ValidateZone(z model.Zone) error {
	if z.ID == "" {
		return &ValidationError{Reason: "missing id"}
	}
	if !z.Type.Valid() {
		return &ValidationError{ZoneID: z.ID, Reason: fmt.Sprintf("unknown type %q", z.Type)}
	}
	if z.MaxDurationMinutes < 0 {
		return &ValidationError{ZoneID: z.ID, Reason: "maxDurationMinutes must be >= 0"}
	}
	if z.DepthMin != nil && z.DepthMax != nil && *z.DepthMin > *z.DepthMax {
		return &ValidationError{ZoneID: z.ID, Reason: "depthMin exceeds depthMax"}
	}
	if len(z.Geometry.Polygons) == 0 {
		return &ValidationError{ZoneID: z.ID, Reason: "geometry has no polygons"}
	}
	for i, poly := range z.Geometry.Polygons {
		if err := validateRing(poly.Exterior); err != nil {
			return &ValidationError{ZoneID: z.ID, Reason: fmt.Sprintf("polygon %d exterior: %v", i, err)}
		}
		for j, h := range poly.Holes {
			if err := validateRing(h); err != nil {
				return &ValidationError{ZoneID: z.ID, Reason: fmt.Sprintf("polygon %d hole %d: %v", i, j, err)}
			}
		}
	}
	return nil
}

// normalizeRing drops the explicit closing vertex when present.
func normalizeRing(r model.Ring) model.Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

func validateRing(r model.Ring) error {
	v := normalizeRing(r)
	if len(v) < 3 {
		return fmt.Errorf("needs at least 3 vertices, has %d", len(v))
	}
	distinct := make(map[model.Point]struct{}, len(v))
	for _, p := range v {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return fmt.Errorf("needs at least 3 distinct vertices, has %d", len(distinct))
	}
	n := len(v)
	for i := 0; i < n; i++ {
		a1, a2 := v[i], v[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// adjacent edges share a vertex and may touch there
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := v[j], v[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return fmt.Errorf("self-intersection between edges %d and %d", i, j)
			}
		}
	}
	return nil
}

// segmentsCross reports whether two segments intersect, including collinear
// overlap and endpoint touches. Callers exclude adjacent ring edges first.
func segmentsCross(p1, p2, p3, p4 model.Point) bool {
	d1 := crossProduct(p3, p4, p1)
	d2 := crossProduct(p3, p4, p2)
	d3 := crossProduct(p1, p2, p3)
	d4 := crossProduct(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

func crossProduct(a, b, c model.Point) float64 {
	return (b.Lon-a.Lon)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lon-a.Lon)
}

// onSegment assumes c is collinear with a-b and checks the box.
func onSegment(a, b, c model.Point) bool {
	return min(a.Lon, b.Lon) <= c.Lon && c.Lon <= max(a.Lon, b.Lon) &&
		min(a.Lat, b.Lat) <= c.Lat && c.Lat <= max(a.Lat, b.Lat)
}
