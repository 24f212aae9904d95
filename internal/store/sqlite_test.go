package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/moltlabs/voice-gateway/internal/autonomy"
	"github.com/moltlabs/voice-gateway/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func TestSQLite_ProjectRequestQueue(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first := autonomy.ProjectRequest{
		ID:            "req-1",
		Category:      "book_flight",
		Entities:      []string{"SFO", "JFK"},
		FailureCount:  5,
		ErrorPatterns: []string{"not configured"},
		RequestedAt:   time.Now().Add(-time.Minute),
	}
	second := autonomy.ProjectRequest{
		ID:           "req-2",
		Category:     "order_pizza",
		FailureCount: 3,
		RequestedAt:  time.Now(),
	}

	if err := repo.EnqueueProjectRequest(ctx, first); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := repo.EnqueueProjectRequest(ctx, second); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := repo.PendingProjectRequests(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending requests, got %d", len(pending))
	}
	if pending[0].ID != "req-1" || pending[1].ID != "req-2" {
		t.Errorf("Expected oldest first, got %s then %s", pending[0].ID, pending[1].ID)
	}
	if pending[0].FailureCount != 5 {
		t.Errorf("Expected failure count 5, got %d", pending[0].FailureCount)
	}
	if len(pending[0].Entities) != 2 || pending[0].Entities[0] != "SFO" {
		t.Errorf("Expected entities [SFO JFK], got %v", pending[0].Entities)
	}

	cleared, err := repo.ClearProjectRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if !cleared {
		t.Error("Expected clear to report true for existing request")
	}

	cleared, err = repo.ClearProjectRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared {
		t.Error("Expected clear to report false for missing request")
	}

	pending, err = repo.PendingProjectRequests(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "req-2" {
		t.Errorf("Expected only req-2 remaining, got %v", pending)
	}
}

func TestSQLite_Subscriptions(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetSubscription(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil subscription, got %+v", got)
	}

	sub := &domain.PushSubscription{
		UserID:    "u1",
		Endpoint:  "https://push.example/ep1",
		KeyP256DH: "key1",
		KeyAuth:   "auth1",
		CreatedAt: time.Now(),
	}
	if err := repo.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Replacing an existing subscription keeps one row per user.
	sub.Endpoint = "https://push.example/ep2"
	if err := repo.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err = repo.GetSubscription(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected subscription, got nil")
	}
	if got.Endpoint != "https://push.example/ep2" {
		t.Errorf("Expected replaced endpoint, got %s", got.Endpoint)
	}
}

func TestSQLite_NotificationQueue(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i, title := range []string{"first", "second"} {
		n := &domain.Notification{
			UserID:    "u1",
			Title:     title,
			Body:      "body",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := repo.QueueNotification(ctx, n); err != nil {
			t.Fatalf("Queue failed: %v", err)
		}
	}

	list, err := repo.NotificationsFor(ctx, "u1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(list))
	}
	if list[0].Title != "first" || list[1].Title != "second" {
		t.Errorf("Expected oldest first, got %s then %s", list[0].Title, list[1].Title)
	}

	other, err := repo.NotificationsFor(ctx, "u2")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no notifications for u2, got %d", len(other))
	}
}
