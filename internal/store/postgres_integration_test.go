//go:build postgres_integration

package store

import (
	"os"
	"testing"
	"time"

	"seaguard/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
	p, err := NewPostgres(dsn)
	if err != nil { t.Fatalf("NewPostgres: %v", err) }
	if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
	if err := p.MigrateDir("../../db/migrations"); err != nil { t.Fatalf("MigrateDir: %v", err) }

	// round-trip one event
	ev := model.ComplianceEvent{
		AuvID: "it-auv", ZoneID: "it-zone", Type: model.EventEntry,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	if err := p.InsertEvents(t.Context(), []model.ComplianceEvent{ev}); err != nil { t.Fatalf("InsertEvents: %v", err) }
	got, _, err := p.ListEvents(t.Context(), EventFilter{AuvID: "it-auv", Limit: 1})
	if err != nil { t.Fatalf("ListEvents: %v", err) }
	if len(got) != 1 { t.Fatalf("expected 1 event, got %d", len(got)) }
}
