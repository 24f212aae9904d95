package channels

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/moltlabs/voice-gateway/internal/domain"
	"github.com/moltlabs/voice-gateway/internal/store"
)

func newTestNotifier(t *testing.T) *Notifier {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return NewNotifier(repo, nil)
}

func TestNotify_WithoutSubscription(t *testing.T) {
	n := newTestNotifier(t)

	delivered, err := n.Notify(context.Background(), "ghost", Payload{Title: "hi"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if delivered {
		t.Error("Expected delivered=false without subscription")
	}
}

func TestNotify_QueuesForSubscriber(t *testing.T) {
	n := newTestNotifier(t)
	ctx := context.Background()

	err := n.Subscribe(ctx, &domain.PushSubscription{
		UserID:    "u1",
		Endpoint:  "https://push.example/ep",
		KeyP256DH: "k",
		KeyAuth:   "a",
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	delivered, err := n.Notify(ctx, "u1", Payload{Title: "gap stored", Body: "review needed", Tag: "escalation"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if !delivered {
		t.Error("Expected delivered=true for subscriber")
	}

	queued, err := n.Queued(ctx, "u1")
	if err != nil {
		t.Fatalf("Queued failed: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("Expected 1 queued notification, got %d", len(queued))
	}
	if queued[0].Title != "gap stored" || queued[0].Tag != "escalation" {
		t.Errorf("Unexpected notification: %+v", queued[0])
	}
}

func TestSubscribe_RequiresIdentity(t *testing.T) {
	n := newTestNotifier(t)

	err := n.Subscribe(context.Background(), &domain.PushSubscription{Endpoint: "https://x"})
	if err == nil {
		t.Error("Expected error for subscription without userId")
	}
	err = n.Subscribe(context.Background(), &domain.PushSubscription{UserID: "u1"})
	if err == nil {
		t.Error("Expected error for subscription without endpoint")
	}
}
