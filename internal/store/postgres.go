package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"seaguard/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every .sql file in dir in lexical order. Files carry
// IF NOT EXISTS guards so re-running on boot is safe.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil { return err }
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") { continue }
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil { return err }
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// Zones

func (p *Postgres) ReplaceZones(ctx context.Context, zones []model.Zone) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return err }
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM zones`); err != nil { return err }
	for _, z := range zones {
		geom, err := json.Marshal(z.Geometry)
		if err != nil { return err }
		_, err = tx.ExecContext(ctx, `INSERT INTO zones (id, name, type, max_duration_minutes, depth_min, depth_max, geometry, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,now())`,
			z.ID, z.Name, string(z.Type), z.MaxDurationMinutes, z.DepthMin, z.DepthMax, geom)
		if err != nil { return err }
	}
	return tx.Commit()
}

func scanZone(scan func(dest ...any) error) (model.Zone, error) {
	var z model.Zone
	var typ string
	var dmin, dmax sql.NullFloat64
	var geom []byte
	if err := scan(&z.ID, &z.Name, &typ, &z.MaxDurationMinutes, &dmin, &dmax, &geom); err != nil {
		return model.Zone{}, err
	}
	z.Type = model.ZoneType(typ)
	if dmin.Valid { v := dmin.Float64; z.DepthMin = &v }
	if dmax.Valid { v := dmax.Float64; z.DepthMax = &v }
	if err := json.Unmarshal(geom, &z.Geometry); err != nil { return model.Zone{}, err }
	return z, nil
}

const zoneCols = `id, name, type, max_duration_minutes, depth_min, depth_max, geometry`

func (p *Postgres) ListZones(ctx context.Context) ([]model.Zone, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+zoneCols+` FROM zones ORDER BY id`)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Zone{}
	for rows.Next() {
		z, err := scanZone(rows.Scan)
		if err != nil { return nil, err }
		out = append(out, z)
	}
	return out, rows.Err()
}

func (p *Postgres) GetZone(ctx context.Context, id string) (model.Zone, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+zoneCols+` FROM zones WHERE id=$1`, id)
	z, err := scanZone(row.Scan)
	if errors.Is(err, sql.ErrNoRows) { return model.Zone{}, ErrNotFound }
	return z, err
}

// Compliance events

func (p *Postgres) InsertEvents(ctx context.Context, events []model.ComplianceEvent) error {
	if len(events) == 0 { return nil }
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return err }
	defer tx.Rollback()
	for _, ev := range events {
		id := ev.ID
		if id == "" { id = uuid.New().String() }
		_, err := tx.ExecContext(ctx, `INSERT INTO events (id, auv_id, zone_id, zone_name, type, ts, lat, lon, depth, duration_minutes, detail)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) ON CONFLICT (id) DO NOTHING`,
			id, ev.AuvID, ev.ZoneID, ev.ZoneName, string(ev.Type), ev.Timestamp,
			ev.Position.Lat, ev.Position.Lon, ev.Depth, ev.DurationMinutes, ev.Detail)
		if err != nil { return err }
	}
	return tx.Commit()
}

// eventQuery assembles the filtered SELECT. Kept separate from ListEvents
// so clause building is testable without a database. The cursor is the seq
// of the last row of the previous page.
func eventQuery(f EventFilter) (string, []any) {
	q := `SELECT seq, id::text, auv_id, zone_id, zone_name, type, ts, lat, lon, depth, duration_minutes, detail FROM events WHERE 1=1`
	args := []any{}
	idx := 1
	if f.AuvID != "" { q += ` AND auv_id=$` + fmt.Sprint(idx); args = append(args, f.AuvID); idx++ }
	if f.ZoneID != "" { q += ` AND zone_id=$` + fmt.Sprint(idx); args = append(args, f.ZoneID); idx++ }
	if f.Type != "" { q += ` AND type=$` + fmt.Sprint(idx); args = append(args, f.Type); idx++ }
	if !f.Since.IsZero() { q += ` AND ts >= $` + fmt.Sprint(idx); args = append(args, f.Since); idx++ }
	if !f.Until.IsZero() { q += ` AND ts <= $` + fmt.Sprint(idx); args = append(args, f.Until); idx++ }
	if f.Cursor != "" {
		if seq, err := strconv.ParseInt(f.Cursor, 10, 64); err == nil {
			q += ` AND seq < $` + fmt.Sprint(idx)
			args = append(args, seq)
			idx++
		}
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 { limit = 100 }
	q += ` ORDER BY seq DESC LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	return q, args
}

func (p *Postgres) ListEvents(ctx context.Context, f EventFilter) ([]model.ComplianceEvent, string, error) {
	q, args := eventQuery(f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.ComplianceEvent{}
	var lastSeq int64
	for rows.Next() {
		var ev model.ComplianceEvent
		var typ string
		if err := rows.Scan(&lastSeq, &ev.ID, &ev.AuvID, &ev.ZoneID, &ev.ZoneName, &typ, &ev.Timestamp,
			&ev.Position.Lat, &ev.Position.Lon, &ev.Depth, &ev.DurationMinutes, &ev.Detail); err != nil {
			return nil, "", err
		}
		ev.Type = model.EventType(typ)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil { return nil, "", err }
	limit := f.Limit
	if limit <= 0 || limit > 1000 { limit = 100 }
	next := ""
	if len(out) == limit { next = strconv.FormatInt(lastSeq, 10) }
	return out, next, nil
}

func (p *Postgres) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM events WHERE ts < $1`, cutoff)
	if err != nil { return 0, err }
	return res.RowsAffected()
}

// Zone visits

func (p *Postgres) InsertZoneVisit(ctx context.Context, v model.ZoneVisit) error {
	id := v.ID
	if id == "" { id = uuid.New().String() }
	_, err := p.db.ExecContext(ctx, `INSERT INTO zone_visits (id, auv_id, zone_id, entry_at, exit_at, duration_minutes)
        VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`,
		id, v.AuvID, v.ZoneID, v.EntryTime, v.ExitTime, v.DurationMinutes)
	return err
}

func (p *Postgres) ListZoneVisits(ctx context.Context, auvID, zoneID, cursor string, limit int) ([]model.ZoneVisit, string, error) {
	q := `SELECT seq, id::text, auv_id, zone_id, entry_at, exit_at, duration_minutes FROM zone_visits WHERE 1=1`
	args := []any{}
	idx := 1
	if auvID != "" { q += ` AND auv_id=$` + fmt.Sprint(idx); args = append(args, auvID); idx++ }
	if zoneID != "" { q += ` AND zone_id=$` + fmt.Sprint(idx); args = append(args, zoneID); idx++ }
	if cursor != "" {
		if seq, err := strconv.ParseInt(cursor, 10, 64); err == nil {
			q += ` AND seq < $` + fmt.Sprint(idx)
			args = append(args, seq)
			idx++
		}
	}
	if limit <= 0 || limit > 1000 { limit = 100 }
	q += ` ORDER BY seq DESC LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.ZoneVisit{}
	var lastSeq int64
	for rows.Next() {
		var v model.ZoneVisit
		if err := rows.Scan(&lastSeq, &v.ID, &v.AuvID, &v.ZoneID, &v.EntryTime, &v.ExitTime, &v.DurationMinutes); err != nil {
			return nil, "", err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil { return nil, "", err }
	next := ""
	if len(out) == limit { next = strconv.FormatInt(lastSeq, 10) }
	return out, next, nil
}

// Reports

func (p *Postgres) ComplianceReport(ctx context.Context, date string) (model.ComplianceReport, error) {
	rep := model.ComplianceReport{Date: date, EventsByType: map[string]int{}, ViolationsByZone: map[string]int{}}
	const window = `ts >= $1::date AND ts < $1::date + INTERVAL '1 day'`

	rows, err := p.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM events WHERE `+window+` GROUP BY type`, date)
	if err != nil { return rep, err }
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil { rows.Close(); return rep, err }
		rep.EventsByType[typ] = n
		rep.TotalEvents += n
	}
	rows.Close()
	if err := rows.Err(); err != nil { return rep, err }

	rows, err = p.db.QueryContext(ctx, `SELECT zone_id, COUNT(*) FROM events WHERE `+window+` AND type='violation' GROUP BY zone_id`, date)
	if err != nil { return rep, err }
	for rows.Next() {
		var zone string
		var n int
		if err := rows.Scan(&zone, &n); err != nil { rows.Close(); return rep, err }
		rep.ViolationsByZone[zone] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil { return rep, err }

	var active, violators int
	err = p.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT auv_id),
        COUNT(DISTINCT auv_id) FILTER (WHERE type='violation') FROM events WHERE `+window, date).Scan(&active, &violators)
	if err != nil { return rep, err }
	rep.ActiveAuvs = active
	rep.ComplianceRate = complianceRate(active, violators)
	return rep, nil
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, err := json.Marshal(req.Events)
	if err != nil { return model.Subscription{}, err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		id, req.URL, ev, req.Secret)
	if err != nil { return model.Subscription{}, err }
	return model.Subscription{ID: id, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	needle, err := json.Marshal([]string{eventType})
	if err != nil { return nil, err }
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE events @> $1::jsonb`, needle)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions ORDER BY id LIMIT $1`, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, "", err }
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil { return nil, "", err }
	next := ""
	if len(out) == limit { next = out[len(out)-1].ID }
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil { return err }
	if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
	return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now(),$7)
        ON CONFLICT (event_type, url, dedup_key) DO NOTHING`, id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil { return "", err }
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var payload []byte
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &payload, &d.Status, &d.Attempts); err != nil { return nil, err }
		d.Payload = payload
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
		id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, last_error, url FROM webhook_deliveries WHERE 1=1`
	args := []any{}
	idx := 1
	if status != "" { q += ` AND status=$` + fmt.Sprint(idx); args = append(args, status); idx++ }
	if cursor != "" { q += ` AND id::text > $` + fmt.Sprint(idx); args = append(args, cursor); idx++ }
	q += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, url string
		var lastErr sql.NullString
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
		if lastErr.Valid && lastErr.String != "" { m["lastError"] = lastErr.String }
		out = append(out, m)
		last = id
	}
	if err := rows.Err(); err != nil { return nil, "", err }
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE id=$1`, id)
	if err != nil { return err }
	if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
	return nil
}

// nullIfEmpty maps "" to SQL NULL for nullable text columns.
func nullIfEmpty(s string) any {
	if s == "" { return nil }
	return s
}

// computeDedupKey keys idempotent enqueue: the event id when the payload
// carries one, otherwise a digest of the payload bytes.
func computeDedupKey(payload []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err == nil && probe.ID != "" {
		return probe.ID
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}
