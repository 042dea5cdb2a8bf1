package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GeoJSONGeometry is the subset of RFC 7946 accepted at the API boundary.
// Positions are [lon, lat]; extra vertex dimensions are ignored.
type GeoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// GeoJSONFeature carries one zone. Zone attributes are read from Properties.
type GeoJSONFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   GeoJSONGeometry `json:"geometry"`
}

// GeoJSONFeatureCollection is the interchange format for zone uploads and
// regulator feeds.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// Decode converts the GeoJSON geometry into the native representation.
// Only Polygon and MultiPolygon are accepted.
func (g GeoJSONGeometry) Decode() (Geometry, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return Geometry{}, fmt.Errorf("polygon coordinates: %w", err)
		}
		poly, err := PolygonFromRings(coords)
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Polygons: []Polygon{poly}}, nil
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return Geometry{}, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		if len(coords) == 0 {
			return Geometry{}, errors.New("multipolygon has no parts")
		}
		geom := Geometry{Polygons: make([]Polygon, 0, len(coords))}
		for i, rings := range coords {
			poly, err := PolygonFromRings(rings)
			if err != nil {
				return Geometry{}, fmt.Errorf("part %d: %w", i, err)
			}
			geom.Polygons = append(geom.Polygons, poly)
		}
		return geom, nil
	default:
		return Geometry{}, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

// PolygonFromRings builds a polygon from [lon, lat] ring coordinates. The
// first ring is the exterior, the rest are holes. Both GeoJSON and ESRI
// JSON order positions x-before-y, so the same conversion serves both.
func PolygonFromRings(rings [][][]float64) (Polygon, error) {
	if len(rings) == 0 {
		return Polygon{}, errors.New("polygon has no rings")
	}
	out := Polygon{}
	for i, ring := range rings {
		r := make(Ring, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return Polygon{}, fmt.Errorf("ring %d: position needs lon and lat", i)
			}
			r = append(r, Point{Lon: pos[0], Lat: pos[1]})
		}
		if i == 0 {
			out.Exterior = r
		} else {
			out.Holes = append(out.Holes, r)
		}
	}
	return out, nil
}

// ZoneFromFeature builds a zone from one GeoJSON feature. Properties are
// read in both camelCase and snake_case so regulator exports load unchanged.
func ZoneFromFeature(f GeoJSONFeature) (Zone, error) {
	geom, err := f.Geometry.Decode()
	if err != nil {
		return Zone{}, err
	}
	z := Zone{
		ID:       propString(f.Properties, "id", "zoneId", "zone_id"),
		Name:     propString(f.Properties, "name", "zoneName", "zone_name"),
		Type:     ZoneType(propString(f.Properties, "type", "zoneType", "zone_type")),
		Geometry: geom,
	}
	if z.ID == "" {
		return Zone{}, errors.New("feature has no zone id property")
	}
	if z.Type == "" {
		z.Type = ZoneMonitoring
	}
	if !z.Type.Valid() {
		return Zone{}, fmt.Errorf("zone %s: unknown type %q", z.ID, z.Type)
	}
	if v, ok := propFloat(f.Properties, "maxDurationMinutes", "max_duration_minutes"); ok {
		z.MaxDurationMinutes = v
	} else if v, ok := propFloat(f.Properties, "maxDurationHours", "max_duration_hours"); ok {
		z.MaxDurationMinutes = v * 60
	}
	if v, ok := propFloat(f.Properties, "depthMin", "depth_min"); ok {
		z.DepthMin = &v
	}
	if v, ok := propFloat(f.Properties, "depthMax", "depth_max"); ok {
		z.DepthMax = &v
	}
	return z, nil
}

// ZonesFromGeoJSON parses a FeatureCollection into zones.
func ZonesFromGeoJSON(data []byte) ([]Zone, error) {
	var fc GeoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}
	zones := make([]Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		z, err := ZoneFromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func propString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func propFloat(props map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := props[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
