// Package model defines the domain types shared across the service.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ZoneType classifies a zone. sensitive and monitoring are interchangeable
// budget-bearing categories; protected and safe zones carry no duration
// budget and never produce violations.
type ZoneType string

const (
	ZoneRestricted ZoneType = "restricted"
	ZoneSensitive  ZoneType = "sensitive"
	ZoneMonitoring ZoneType = "monitoring"
	ZoneProtected  ZoneType = "protected"
	ZoneSafe       ZoneType = "safe"
)

// Valid reports whether t is a known zone type.
func (t ZoneType) Valid() bool {
	switch t {
	case ZoneRestricted, ZoneSensitive, ZoneMonitoring, ZoneProtected, ZoneSafe:
		return true
	}
	return false
}

// Exempt reports whether the type is exempt from duration budgets.
func (t ZoneType) Exempt() bool { return t == ZoneProtected || t == ZoneSafe }

// EventType labels a compliance event.
type EventType string

const (
	EventEntry     EventType = "entry"
	EventExit      EventType = "exit"
	EventWarning   EventType = "warning"
	EventViolation EventType = "violation"
)

// ComplianceStatus is the standing of a vehicle inside one zone.
type ComplianceStatus string

const (
	StatusCompliant ComplianceStatus = "compliant"
	StatusWarning   ComplianceStatus = "warning"
	StatusViolation ComplianceStatus = "violation"
)

func (s ComplianceStatus) severity() int {
	switch s {
	case StatusViolation:
		return 2
	case StatusWarning:
		return 1
	}
	return 0
}

// Worse reports whether s is a more severe standing than o.
func (s ComplianceStatus) Worse(o ComplianceStatus) bool { return s.severity() > o.severity() }

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Ring is a closed sequence of vertices. The closing vertex may be omitted;
// the last edge is implied back to the first vertex.
type Ring []Point

// Polygon is an exterior ring with zero or more interior holes.
type Polygon struct {
	Exterior Ring   `json:"exterior"`
	Holes    []Ring `json:"holes,omitempty"`
}

// Geometry is one or more polygons. A point is inside the geometry when it
// is inside at least one constituent polygon.
type Geometry struct {
	Polygons []Polygon `json:"polygons"`
}

// Zone is a named geographic area with an optional dwell-time budget and an
// optional operating depth band in meters.
type Zone struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Type               ZoneType `json:"type"`
	MaxDurationMinutes float64  `json:"maxDurationMinutes,omitempty"`
	DepthMin           *float64 `json:"depthMin,omitempty"`
	DepthMax           *float64 `json:"depthMax,omitempty"`
	Geometry           Geometry `json:"geometry"`
}

// HasBudget reports whether dwell time in z is bounded. Exempt zone types
// never have a budget regardless of MaxDurationMinutes.
func (z Zone) HasBudget() bool { return z.MaxDurationMinutes > 0 && !z.Type.Exempt() }

// DepthInBand reports whether depth falls inside the zone's depth band.
// Zones without a band accept every depth.
func (z Zone) DepthInBand(depth float64) bool {
	if z.DepthMin != nil && depth < *z.DepthMin {
		return false
	}
	if z.DepthMax != nil && depth > *z.DepthMax {
		return false
	}
	return true
}

// PositionSample is one telemetry fix for a vehicle.
type PositionSample struct {
	AuvID     string    `json:"auvId"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Depth     float64   `json:"depth"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid checks field ranges and reports the first offending field.
func (s PositionSample) Valid() error {
	if s.AuvID == "" {
		return errors.New("auvId is required")
	}
	if s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("latitude %.6f out of range [-90, 90]", s.Lat)
	}
	if s.Lon < -180 || s.Lon > 180 {
		return fmt.Errorf("longitude %.6f out of range [-180, 180]", s.Lon)
	}
	if s.Depth < 0 {
		return fmt.Errorf("depth %.2f must be >= 0", s.Depth)
	}
	if s.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// Position returns the sample's coordinate.
func (s PositionSample) Position() Point { return Point{Lat: s.Lat, Lon: s.Lon} }

// ZoneMembership is the live record of a vehicle's ongoing presence inside
// one zone. Owned exclusively by the engine's tracker.
type ZoneMembership struct {
	AuvID                     string           `json:"auvId"`
	ZoneID                    string           `json:"zoneId"`
	ZoneName                  string           `json:"zoneName,omitempty"`
	ZoneType                  ZoneType         `json:"zoneType"`
	EntryTime                 time.Time        `json:"entryTime"`
	LastSeenTime              time.Time        `json:"lastSeenTime"`
	CumulativeDurationMinutes float64          `json:"cumulativeDurationMinutes"`
	Status                    ComplianceStatus `json:"status"`
	DepthAlert                bool             `json:"depthAlert,omitempty"`
}

// ComplianceEvent is an immutable record of a transition or threshold
// crossing. DurationMinutes is the dwell time at the moment of the event.
type ComplianceEvent struct {
	ID              string    `json:"id"`
	AuvID           string    `json:"auvId"`
	ZoneID          string    `json:"zoneId"`
	ZoneName        string    `json:"zoneName,omitempty"`
	Type            EventType `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	Position        Point     `json:"position"`
	Depth           float64   `json:"depth"`
	DurationMinutes float64   `json:"durationMinutes"`
	Detail          string    `json:"detail,omitempty"`
}

// AuvStatus is the on-demand view of one vehicle: every active membership
// plus the worst standing among them.
type AuvStatus struct {
	AuvID         string           `json:"auvId"`
	OverallStatus ComplianceStatus `json:"overallStatus"`
	Memberships   []ZoneMembership `json:"memberships"`
	LastPosition  Point            `json:"lastPosition"`
	LastDepth     float64          `json:"lastDepth"`
	LastSeen      time.Time        `json:"lastSeen"`
}

// ZoneVisit is a closed membership: written once when a vehicle exits a zone.
type ZoneVisit struct {
	ID              string    `json:"id"`
	AuvID           string    `json:"auvId"`
	ZoneID          string    `json:"zoneId"`
	EntryTime       time.Time `json:"entryTime"`
	ExitTime        time.Time `json:"exitTime"`
	DurationMinutes float64   `json:"durationMinutes"`
}

// SubscriptionRequest registers a webhook endpoint for compliance events.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Subscription is a registered webhook endpoint.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

// ComplianceReport aggregates one day of compliance activity.
type ComplianceReport struct {
	Date             string         `json:"date"`
	TotalEvents      int            `json:"totalEvents"`
	EventsByType     map[string]int `json:"eventsByType"`
	ViolationsByZone map[string]int `json:"violationsByZone"`
	ActiveAuvs       int            `json:"activeAuvs"`
	ComplianceRate   float64        `json:"complianceRate"`
}
