// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/moltlabs/voice-gateway/internal/autonomy"
	"github.com/moltlabs/voice-gateway/internal/domain"
)

// Repository persists the review queue and push-notification state.
type Repository interface {
	// EnqueueProjectRequest appends a project request to the pending-review
	// queue. Requests are immutable once stored.
	EnqueueProjectRequest(ctx context.Context, req autonomy.ProjectRequest) error

	// PendingProjectRequests lists all queued project requests, oldest first.
	PendingProjectRequests(ctx context.Context) ([]autonomy.ProjectRequest, error)

	// ClearProjectRequest removes a reviewed request and reports whether it
	// existed.
	ClearProjectRequest(ctx context.Context, id string) (bool, error)

	// SaveSubscription stores or replaces a user's push subscription.
	SaveSubscription(ctx context.Context, sub *domain.PushSubscription) error

	// GetSubscription retrieves a user's push subscription, or nil if none.
	GetSubscription(ctx context.Context, userID string) (*domain.PushSubscription, error)

	// QueueNotification appends a notification for later client retrieval.
	QueueNotification(ctx context.Context, n *domain.Notification) error

	// NotificationsFor lists a user's queued notifications, oldest first.
	NotificationsFor(ctx context.Context, userID string) ([]*domain.Notification, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
