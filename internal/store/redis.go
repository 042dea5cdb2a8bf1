package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"seaguard/internal/model"
)

// Live mirrors per-vehicle state into Redis for dashboards. It is a
// write-only projection: the engine stays the source of truth and nothing
// here is read back on restart.
type Live struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLive(redisURL string) (*Live, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Live{client: redis.NewClient(opt), ttl: 30 * time.Minute}, nil
}

func (l *Live) Close() error { return l.client.Close() }

func (l *Live) Ping(ctx context.Context) error { return l.client.Ping(ctx).Err() }

// UpdateVehicle writes the vehicle hash, refreshes its TTL, updates the geo
// set and publishes the fix for live subscribers, all in one pipeline.
func (l *Live) UpdateVehicle(ctx context.Context, st model.AuvStatus) error {
	stateKey := fmt.Sprintf("auv:%s:state", st.AuvID)
	state := map[string]interface{}{
		"auv_id":    st.AuvID,
		"status":    string(st.OverallStatus),
		"lat":       st.LastPosition.Lat,
		"lon":       st.LastPosition.Lon,
		"depth":     st.LastDepth,
		"zones":     len(st.Memberships),
		"last_seen": st.LastSeen.Unix(),
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal vehicle state: %w", err)
	}

	pipe := l.client.Pipeline()
	pipe.HSet(ctx, stateKey, state)
	pipe.Expire(ctx, stateKey, l.ttl)
	// Redis geo sets only accept latitudes inside the web-mercator range.
	if st.LastPosition.Lat >= -85 && st.LastPosition.Lat <= 85 {
		pipe.GeoAdd(ctx, "auv:positions", &redis.GeoLocation{
			Name:      st.AuvID,
			Longitude: st.LastPosition.Lon,
			Latitude:  st.LastPosition.Lat,
		})
	}
	pipe.Publish(ctx, "auv:telemetry", payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}
