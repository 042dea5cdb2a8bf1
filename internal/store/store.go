package store

import (
	"context"
	"errors"
	"time"

	"seaguard/internal/model"
)

// Store is the persistence interface used by the API server. The engine
// holds live state; the store keeps the durable record: the zone catalog,
// event history, closed visits, subscriptions and the webhook queue.
type Store interface {
	// Zones
	ReplaceZones(ctx context.Context, zones []model.Zone) error
	ListZones(ctx context.Context) ([]model.Zone, error)
	GetZone(ctx context.Context, id string) (model.Zone, error)

	// Compliance events
	InsertEvents(ctx context.Context, events []model.ComplianceEvent) error
	ListEvents(ctx context.Context, f EventFilter) ([]model.ComplianceEvent, string, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Zone visits (closed crossings)
	InsertZoneVisit(ctx context.Context, v model.ZoneVisit) error
	ListZoneVisits(ctx context.Context, auvID, zoneID, cursor string, limit int) ([]model.ZoneVisit, string, error)

	// Reports
	ComplianceReport(ctx context.Context, date string) (model.ComplianceReport, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}

// EventFilter narrows ListEvents. Zero fields match everything; Cursor is
// the opaque token returned by the previous page.
type EventFilter struct {
	AuvID  string
	ZoneID string
	Type   string
	Since  time.Time
	Until  time.Time
	Cursor string
	Limit  int
}

var ErrNotFound = errors.New("not found")
