// Package channels delivers out-of-band notifications to users. Notifications
// are queued for client retrieval; the Web Push wire protocol itself is
// handled outside this service.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moltlabs/voice-gateway/internal/domain"
	"github.com/moltlabs/voice-gateway/internal/store"
)

// Payload is the content of one notification.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Notifier queues notifications for subscribed users.
type Notifier struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewNotifier creates a notifier backed by the given repository.
func NewNotifier(repo store.Repository, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{repo: repo, logger: logger}
}

// Subscribe stores or replaces a user's push subscription.
func (n *Notifier) Subscribe(ctx context.Context, sub *domain.PushSubscription) error {
	if sub.UserID == "" || sub.Endpoint == "" {
		return fmt.Errorf("subscription requires userId and endpoint")
	}
	sub.CreatedAt = time.Now()
	if err := n.repo.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	n.logger.Info("Push subscription stored", "user_id", sub.UserID)
	return nil
}

// Notify queues a notification for the user. It reports false without error
// when the user has no subscription; there is nowhere to deliver to.
func (n *Notifier) Notify(ctx context.Context, userID string, payload Payload) (bool, error) {
	sub, err := n.repo.GetSubscription(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		n.logger.Warn("No push subscription for user", "user_id", userID)
		return false, nil
	}

	notification := &domain.Notification{
		UserID:    userID,
		Title:     payload.Title,
		Body:      payload.Body,
		URL:       payload.URL,
		Tag:       payload.Tag,
		CreatedAt: time.Now(),
	}
	if err := n.repo.QueueNotification(ctx, notification); err != nil {
		return false, fmt.Errorf("queue notification: %w", err)
	}

	n.logger.Info("Notification queued", "user_id", userID, "title", payload.Title)
	return true, nil
}

// Queued lists a user's pending notifications, oldest first.
func (n *Notifier) Queued(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return n.repo.NotificationsFor(ctx, userID)
}
