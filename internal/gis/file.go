package gis

import (
	"context"
	"fmt"
	"os"

	"seaguard/internal/model"
)

// FileSource reads a GeoJSON FeatureCollection from disk. Zone attributes
// come from feature properties, so seed files are self-describing.
type FileSource struct {
	name string
	path string
}

func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (s *FileSource) Name() string { return s.name }

func (s *FileSource) FetchZones(ctx context.Context) ([]model.Zone, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return model.ZonesFromGeoJSON(data)
}
