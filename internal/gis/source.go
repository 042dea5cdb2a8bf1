// Package gis acquires zone catalogs from external sources: ArcGIS feature
// services published by regulators, and local GeoJSON files for seed data.
package gis

import (
	"context"

	"seaguard/internal/model"
)

// Source produces a zone set. Implementations fetch the whole catalog on
// every call; diffing is the syncer's job, not the source's.
type Source interface {
	Name() string
	FetchZones(ctx context.Context) ([]model.Zone, error)
}

// ZoneDefaults fills zone attributes a source's payload does not carry.
// ArcGIS layers rarely encode dwell budgets, so they come from config.
type ZoneDefaults struct {
	Type               model.ZoneType
	MaxDurationMinutes float64
	DepthMin           *float64
	DepthMax           *float64
}
