package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seaguard/internal/model"
	"seaguard/internal/store"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues one delivery per subscription matching the event type.
// The event's own ID becomes the payload ID, so re-emitting the same
// event collapses onto the existing delivery row instead of duplicating it.
func (p *Publisher) Emit(ctx context.Context, ev model.ComplianceEvent) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, string(ev.Type))
	if err != nil || len(subs) == 0 {
		return
	}
	id := ev.ID
	if id == "" {
		id = fmt.Sprintf("evt_%d", time.Now().UnixNano())
	}
	payload := map[string]any{
		"id":   id,
		"type": string(ev.Type),
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": ev,
	}
	body, _ := json.Marshal(payload)
	for _, s := range subs {
		_, _ = p.Store.EnqueueWebhook(ctx, s.ID, string(ev.Type), s.URL, s.Secret, body)
	}
}
