package store

import (
	"context"
	"errors"
	"time"

	"routeplanner/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Tours
	SaveTour(ctx context.Context, t model.Tour) error
	GetTour(ctx context.Context, tenantID, id string) (model.Tour, error)
	ListTours(ctx context.Context, tenantID, cursor string, limit int) ([]model.Tour, string, error)
	DeleteTour(ctx context.Context, tenantID, id string) error
	TourStats(ctx context.Context, tenantID string) (TourStats, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
}

// TourStats summarizes the stored tours of a tenant.
type TourStats struct {
	Tours           int            `json:"tours"`
	Points          int            `json:"points"`
	TotalKm         float64        `json:"totalKm"`
	AvgKm           float64        `json:"avgKm"`
	ByAlgorithm     map[string]int `json:"byAlgorithm"`
	OptimalFraction float64        `json:"optimalFraction"`
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
