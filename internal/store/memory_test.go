package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"seaguard/internal/model"
)

func memZone(id string) model.Zone {
	return model.Zone{
		ID:   id,
		Name: "zone " + id,
		Type: model.ZoneMonitoring,
		Geometry: model.Geometry{Polygons: []model.Polygon{{Exterior: model.Ring{
			{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0},
		}}}},
	}
}

func memEvent(id, auv, zone string, t model.EventType, ts time.Time) model.ComplianceEvent {
	return model.ComplianceEvent{ID: id, AuvID: auv, ZoneID: zone, Type: t, Timestamp: ts}
}

func TestMemoryZonesReplaceAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.ReplaceZones(ctx, []model.Zone{memZone("A"), memZone("B")}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	zones, err := m.ListZones(ctx)
	if err != nil || len(zones) != 2 {
		t.Fatalf("list: %v, %d zones", err, len(zones))
	}
	if _, err := m.GetZone(ctx, "A"); err != nil {
		t.Fatalf("get A: %v", err)
	}

	// wholesale replacement drops zones missing from the new set
	if err := m.ReplaceZones(ctx, []model.Zone{memZone("C")}); err != nil {
		t.Fatalf("replace 2: %v", err)
	}
	if _, err := m.GetZone(ctx, "A"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for dropped zone, got %v", err)
	}
}

func TestMemoryEventsListFilterAndCursor(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []model.ComplianceEvent
	for i := 0; i < 10; i++ {
		auv := "AUV-1"
		if i%2 == 1 {
			auv = "AUV-2"
		}
		events = append(events, memEvent(
			rune2id(i), auv, "Z", model.EventEntry, base.Add(time.Duration(i)*time.Minute)))
	}
	if err := m.InsertEvents(ctx, events); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// newest first
	all, next, err := m.ListEvents(ctx, EventFilter{})
	if err != nil || len(all) != 10 {
		t.Fatalf("list: %v, %d", err, len(all))
	}
	if next != "" {
		t.Fatalf("no next page expected, got %q", next)
	}
	if !all[0].Timestamp.After(all[9].Timestamp) {
		t.Fatal("events should be newest first")
	}

	// auv filter
	ours, _, _ := m.ListEvents(ctx, EventFilter{AuvID: "AUV-1"})
	if len(ours) != 5 {
		t.Fatalf("AUV-1 filter returned %d", len(ours))
	}

	// pagination
	page1, cursor, _ := m.ListEvents(ctx, EventFilter{Limit: 4})
	if len(page1) != 4 || cursor == "" {
		t.Fatalf("page1: %d, cursor %q", len(page1), cursor)
	}
	page2, _, _ := m.ListEvents(ctx, EventFilter{Limit: 4, Cursor: cursor})
	if len(page2) != 4 {
		t.Fatalf("page2: %d", len(page2))
	}
	if page1[0].ID == page2[0].ID {
		t.Fatal("pages overlap")
	}

	// time window
	windowed, _, _ := m.ListEvents(ctx, EventFilter{Since: base.Add(3 * time.Minute), Until: base.Add(5 * time.Minute)})
	if len(windowed) != 3 {
		t.Fatalf("window returned %d", len(windowed))
	}
}

func rune2id(i int) string { return string(rune('a' + i)) }

func TestMemoryDeleteEventsBefore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = m.InsertEvents(ctx, []model.ComplianceEvent{
		memEvent("old", "A", "Z", model.EventEntry, base),
		memEvent("new", "A", "Z", model.EventExit, base.Add(48*time.Hour)),
	})
	n, err := m.DeleteEventsBefore(ctx, base.Add(24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("cleanup: %v, removed %d", err, n)
	}
	left, _, _ := m.ListEvents(ctx, EventFilter{})
	if len(left) != 1 || left[0].ID != "new" {
		t.Fatalf("wrong survivor: %+v", left)
	}
}

func TestMemoryZoneVisits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := m.InsertZoneVisit(ctx, model.ZoneVisit{
			AuvID: "AUV-1", ZoneID: "Z", EntryTime: base, ExitTime: base.Add(time.Duration(i+1) * time.Minute),
			DurationMinutes: float64(i + 1),
		})
		if err != nil {
			t.Fatalf("insert visit: %v", err)
		}
	}
	visits, _, err := m.ListZoneVisits(ctx, "AUV-1", "", "", 10)
	if err != nil || len(visits) != 3 {
		t.Fatalf("list visits: %v, %d", err, len(visits))
	}
	if visits[0].DurationMinutes != 3 {
		t.Fatal("visits should be newest first")
	}
	none, _, _ := m.ListZoneVisits(ctx, "AUV-9", "", "", 10)
	if len(none) != 0 {
		t.Fatalf("unknown vehicle returned %d visits", len(none))
	}
}

func TestMemoryComplianceReport(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_ = m.InsertEvents(ctx, []model.ComplianceEvent{
		memEvent("1", "AUV-1", "Z1", model.EventEntry, day),
		memEvent("2", "AUV-1", "Z1", model.EventViolation, day.Add(time.Hour)),
		memEvent("3", "AUV-2", "Z2", model.EventEntry, day.Add(2*time.Hour)),
		memEvent("4", "AUV-3", "Z1", model.EventEntry, day.Add(26*time.Hour)), // next day
	})
	rep, err := m.ComplianceReport(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.TotalEvents != 3 {
		t.Fatalf("total = %d", rep.TotalEvents)
	}
	if rep.EventsByType["entry"] != 2 || rep.EventsByType["violation"] != 1 {
		t.Fatalf("by type: %v", rep.EventsByType)
	}
	if rep.ViolationsByZone["Z1"] != 1 {
		t.Fatalf("by zone: %v", rep.ViolationsByZone)
	}
	if rep.ActiveAuvs != 2 {
		t.Fatalf("active = %d", rep.ActiveAuvs)
	}
	if rep.ComplianceRate != 0.5 {
		t.Fatalf("rate = %v", rep.ComplianceRate)
	}
}

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s, err := m.CreateSubscription(ctx, model.SubscriptionRequest{
		URL: "https://example.com/hook", Events: []string{"violation", "warning"}, Secret: "s3cr3t",
	})
	if err != nil || s.ID == "" {
		t.Fatalf("create: %v, %+v", err, s)
	}
	hits, _ := m.GetSubscriptionsForEvent(ctx, "violation")
	if len(hits) != 1 {
		t.Fatalf("violation subs = %d", len(hits))
	}
	if miss, _ := m.GetSubscriptionsForEvent(ctx, "entry"); len(miss) != 0 {
		t.Fatalf("entry subs = %d", len(miss))
	}
	if err := m.DeleteSubscription(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteSubscription(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should return ErrNotFound, got %v", err)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.EnqueueWebhook(ctx, "sub1", "violation", "https://example.com/hook", "s", []byte(`{"id":"e1"}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 1 || due[0].ID != id {
		t.Fatalf("fetch due: %v, %+v", err, due)
	}

	// failed attempt schedules a retry in the future
	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500, 12); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if due, _ = m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("retry should not be due yet, got %d", len(due))
	}

	// admin retry makes it due immediately
	if err := m.RetryWebhookDelivery(ctx, id); err != nil {
		t.Fatalf("retry: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].Attempts != 1 {
		t.Fatalf("after retry: %+v", due)
	}

	// success terminates the delivery
	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 8); err != nil {
		t.Fatalf("mark success: %v", err)
	}
	if due, _ = m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("delivered should not be due, got %d", len(due))
	}

	rows, _, err := m.ListWebhookDeliveries(ctx, "delivered", "", 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("list: %v, %d", err, len(rows))
	}
	if rows[0]["attempts"].(int) != 2 {
		t.Fatalf("attempts = %v", rows[0]["attempts"])
	}
}

func TestMemoryWebhookFail(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.EnqueueWebhook(ctx, "sub1", "warning", "https://example.com/hook", "", []byte(`{}`))
	if err := m.FailWebhookDelivery(ctx, id, "gave up", 503, 40); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("failed delivery still due: %d", len(due))
	}
	rows, _, _ := m.ListWebhookDeliveries(ctx, "failed", "", 10)
	if len(rows) != 1 || rows[0]["lastError"] != "gave up" {
		t.Fatalf("failed row: %+v", rows)
	}
}
