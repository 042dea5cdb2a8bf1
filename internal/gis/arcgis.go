package gis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"seaguard/internal/model"
)

// ArcGISSource reads one feature layer of an ArcGIS FeatureServer. The
// layer URL is the numbered layer endpoint; /query is appended here.
type ArcGISSource struct {
	name     string
	url      string
	defaults ZoneDefaults
	client   *http.Client
}

func NewArcGISSource(name, url string, defs ZoneDefaults) *ArcGISSource {
	if defs.Type == "" {
		defs.Type = model.ZoneMonitoring
	}
	return &ArcGISSource{
		name:     name,
		url:      strings.TrimRight(url, "/"),
		defaults: defs,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ArcGISSource) Name() string { return s.name }

type esriQueryResponse struct {
	Features []esriFeature `json:"features"`
	Error    *esriError    `json:"error"`
}

type esriFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *esriGeometry  `json:"geometry"`
}

type esriGeometry struct {
	Rings [][][]float64 `json:"rings"`
}

type esriError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FetchZones queries the full layer. ESRI reports errors inside a 200
// response, so the error member is checked before the features.
func (s *ArcGISSource) FetchZones(ctx context.Context) ([]model.Zone, error) {
	u := s.url + "/query?where=1%3D1&outFields=*&returnGeometry=true&f=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arcgis query: status %d", resp.StatusCode)
	}
	var doc esriQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("arcgis decode: %w", err)
	}
	if doc.Error != nil {
		return nil, fmt.Errorf("arcgis error %d: %s", doc.Error.Code, doc.Error.Message)
	}

	zones := make([]model.Zone, 0, len(doc.Features))
	for i, f := range doc.Features {
		if f.Geometry == nil || len(f.Geometry.Rings) == 0 {
			continue
		}
		poly, err := model.PolygonFromRings(f.Geometry.Rings)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		zones = append(zones, model.Zone{
			ID:                 featureID(s.name, f.Attributes, i),
			Name:               attrString(f.Attributes, "NAME", "Name", "name", "ZONE_NAME", "SITE_NAME"),
			Type:               s.defaults.Type,
			MaxDurationMinutes: s.defaults.MaxDurationMinutes,
			DepthMin:           s.defaults.DepthMin,
			DepthMax:           s.defaults.DepthMax,
			Geometry:           model.Geometry{Polygons: []model.Polygon{poly}},
		})
	}
	return zones, nil
}

// featureID derives a stable zone id so repeated syncs replace rather than
// duplicate. Prefers the layer's object id, falls back to feature order.
func featureID(source string, attrs map[string]any, idx int) string {
	for _, k := range []string{"OBJECTID", "objectid", "FID", "ZONE_ID", "zoneId", "id"} {
		switch v := attrs[k].(type) {
		case float64:
			return fmt.Sprintf("%s-%d", source, int64(v))
		case string:
			if v != "" {
				return source + "-" + v
			}
		}
	}
	return fmt.Sprintf("%s-%d", source, idx)
}

func attrString(attrs map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := attrs[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
