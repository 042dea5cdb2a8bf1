// Package main runs a demo WebSocket client for compliance events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := "http://localhost:" + port

	// Load a small restricted box with a 10 minute budget.
	zones := []byte(`{"zones":[{
		"id": "demo-zone",
		"name": "Demo Restricted Box",
		"type": "restricted",
		"maxDurationMinutes": 10,
		"geometry": {"polygons": [{"exterior": [
			{"lat": 42.0, "lon": -70.0},
			{"lat": 42.0, "lon": -69.0},
			{"lat": 43.0, "lon": -69.0},
			{"lat": 43.0, "lon": -70.0}
		]}]}
	}]}`)
	if err := call(http.MethodPut, base+"/v1/zones", zones); err != nil {
		log.Fatal(err)
	}
	log.Print("zone loaded: demo-zone")

	done, closeWS, err := streamEvents(port, "demo-auv")
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer closeWS()
	time.Sleep(500 * time.Millisecond)

	// Drive a track through the box: entry, warning, violation, exit.
	t0 := time.Now().UTC().Add(-15 * time.Minute)
	track := []struct {
		lat, lon float64
		at       time.Duration
	}{
		{41.5, -69.5, 0},                // outside
		{42.5, -69.5, time.Minute},      // entry
		{42.5, -69.4, 10 * time.Minute}, // 9 min inside, warning
		{42.6, -69.4, 12 * time.Minute}, // over budget, violation
		{41.5, -69.5, 13 * time.Minute}, // exit
	}
	for _, p := range track {
		sample := map[string]any{
			"auvId":     "demo-auv",
			"lat":       p.lat,
			"lon":       p.lon,
			"depth":     20.0,
			"timestamp": t0.Add(p.at).Format(time.RFC3339),
		}
		body, _ := json.Marshal(sample)
		if err := call(http.MethodPost, base+"/v1/telemetry", body); err != nil {
			log.Fatal(err)
		}
	}

	// Wait briefly to receive the events
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

// streamEvents subscribes to the per-vehicle event stream and logs every
// message until the connection drops.
func streamEvents(port, auvID string) (<-chan struct{}, func(), error) {
	u := url.URL{
		Scheme:   "ws",
		Host:     "localhost:" + port,
		Path:     "/v1/events/ws",
		RawQuery: "auvId=" + url.QueryEscape(auvID),
	}
	hdr := http.Header{"X-Subject-Id": {"demo"}, "X-Role": {"admin"}}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev wsEvent
			if err := conn.ReadJSON(&ev); err != nil {
				log.Printf("read: %v", err)
				return
			}
			data, _ := json.Marshal(ev.Data)
			log.Printf("WS <- %s: %s", ev.Type, data)
		}
	}()
	return done, func() { _ = conn.Close() }, nil
}

func call(method, endpoint string, body []byte) error {
	req, err := http.NewRequest(method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subject-Id", "demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, endpoint, resp.StatusCode)
	}
	return nil
}
