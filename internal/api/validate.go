package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"seaguard/internal/model"
)

func validEventType(t string) bool {
	switch model.EventType(t) {
	case model.EventEntry, model.EventExit, model.EventWarning, model.EventViolation:
		return true
	}
	return false
}

// decodeZonesPayload accepts either the native form {"zones": [...]} or a
// GeoJSON FeatureCollection.
func decodeZonesPayload(r io.Reader) ([]model.Zone, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var probe struct {
		Type  string       `json:"type"`
		Zones []model.Zone `json:"zones"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe.Type == "FeatureCollection" {
		return model.ZonesFromGeoJSON(data)
	}
	if probe.Zones == nil {
		return nil, errors.New(`payload must be {"zones": [...]} or a GeoJSON FeatureCollection`)
	}
	return probe.Zones, nil
}

func validateSubscriptionRequest(req model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be absolute http(s)")
	}
	if len(req.Events) == 0 {
		return errors.New("events must not be empty")
	}
	for _, t := range req.Events {
		if !validEventType(t) {
			return fmt.Errorf("unknown event type %q", t)
		}
	}
	return nil
}
