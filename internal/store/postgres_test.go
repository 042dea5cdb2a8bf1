package store

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"ev_123","type":"violation"}`)
	if got := computeDedupKey(body); got != "ev_123" {
		t.Fatalf("want ev_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected, got %v", v)
	}
	if v := nullIfEmpty("x"); v != "x" {
		t.Fatalf("non-empty passes through, got %v", v)
	}
}

func TestEventQueryClauses(t *testing.T) {
	q, args := eventQuery(EventFilter{})
	if strings.Contains(q, "AND auv_id") || len(args) != 1 {
		t.Fatalf("empty filter should only carry the limit: %s %v", q, args)
	}

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	q, args = eventQuery(EventFilter{AuvID: "AUV-1", Type: "violation", Since: since, Limit: 5})
	for _, want := range []string{"auv_id=$1", "type=$2", "ts >= $3", "LIMIT $4"} {
		if !strings.Contains(q, want) {
			t.Fatalf("missing %q in %s", want, q)
		}
	}
	if len(args) != 4 || args[0] != "AUV-1" || args[3] != 5 {
		t.Fatalf("args wrong: %v", args)
	}
	if !strings.Contains(q, "ORDER BY seq DESC") {
		t.Fatalf("newest first ordering missing: %s", q)
	}
}

func TestEventQueryCursor(t *testing.T) {
	q, args := eventQuery(EventFilter{Cursor: "42"})
	if !strings.Contains(q, "seq < $1") || args[0] != int64(42) {
		t.Fatalf("cursor clause wrong: %s %v", q, args)
	}
	// a garbage cursor is ignored rather than erroring the request
	q, args = eventQuery(EventFilter{Cursor: "not-a-seq"})
	if strings.Contains(q, "seq <") || len(args) != 1 {
		t.Fatalf("bad cursor should be dropped: %s %v", q, args)
	}
}

func TestComplianceRate(t *testing.T) {
	if complianceRate(0, 0) != 1 {
		t.Fatal("no activity is fully compliant")
	}
	if complianceRate(4, 1) != 0.75 {
		t.Fatalf("got %v", complianceRate(4, 1))
	}
	if complianceRate(3, 3) != 0 {
		t.Fatalf("got %v", complianceRate(3, 3))
	}
}
