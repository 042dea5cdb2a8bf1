package webhooks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"seaguard/internal/model"
	"seaguard/internal/store"
)

func TestPublisherEmitFansOut(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s1, err := mem.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://ops.example/hooks", Events: []string{"violation", "warning"}, Secret: "s1"})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if _, err := mem.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://other.example/hooks", Events: []string{"entry"}}); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	p := NewPublisher(mem)
	ev := model.ComplianceEvent{
		ID:        "ev-42",
		AuvID:     "auv-1",
		ZoneID:    "z1",
		Type:      model.EventViolation,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	p.Emit(ctx, ev)

	due, err := mem.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected one delivery (entry-only subscriber skipped), got %d", len(due))
	}
	d := due[0]
	if d.SubscriptionID != s1.ID || d.URL != "https://ops.example/hooks" || d.EventType != "violation" {
		t.Fatalf("unexpected delivery: %+v", d)
	}

	var payload struct {
		ID   string                `json:"id"`
		Type string                `json:"type"`
		Data model.ComplianceEvent `json:"data"`
	}
	if err := json.Unmarshal(d.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.ID != "ev-42" || payload.Type != "violation" {
		t.Fatalf("payload id/type = %q/%q, want ev-42/violation", payload.ID, payload.Type)
	}
	if payload.Data.AuvID != "auv-1" || payload.Data.ZoneID != "z1" {
		t.Fatalf("payload data = %+v", payload.Data)
	}
}

func TestPublisherEmitNoSubscribers(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := NewPublisher(mem)
	p.Emit(ctx, model.ComplianceEvent{ID: "ev-1", Type: model.EventEntry})
	due, err := mem.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 0 {
		t.Fatalf("expected empty queue, got %d (err %v)", len(due), err)
	}
}
