package autonomy

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/moltlabs/voice-gateway/internal/capability"
)

// synthFake fails or succeeds SynthesizerExtract per scripted behavior; the
// rest of the capability surface is unused by the ladder.
type synthFake struct {
	composeOK    bool
	synthesizeOK bool
	topics       []string
}

func (f *synthFake) SynthesizerExtract(ctx context.Context, topic string) capability.Result {
	f.topics = append(f.topics, topic)
	firstCall := len(f.topics) == 1
	if (firstCall && f.composeOK) || (!firstCall && f.synthesizeOK) {
		return capability.Result{OK: true, Data: json.RawMessage(`{"skill":"x"}`), Source: "synthesizer"}
	}
	return capability.Result{OK: false, Error: "no match", Source: "synthesizer"}
}

func (f *synthFake) Chat(ctx context.Context, message, userID string) capability.Result {
	return capability.Result{}
}
func (f *synthFake) ProjectStatus(ctx context.Context, projectName string) capability.Result {
	return capability.Result{}
}
func (f *synthFake) Workflows(ctx context.Context) capability.Result  { return capability.Result{} }
func (f *synthFake) Approvals(ctx context.Context) capability.Result  { return capability.Result{} }
func (f *synthFake) Recall(ctx context.Context, query string) capability.Result {
	return capability.Result{}
}
func (f *synthFake) Ingest(ctx context.Context, content, source string) capability.Result {
	return capability.Result{}
}
func (f *synthFake) WorldModelSummary(ctx context.Context) capability.Result {
	return capability.Result{}
}
func (f *synthFake) RepoRadarPatterns(ctx context.Context) capability.Result {
	return capability.Result{}
}
func (f *synthFake) WatchdogSignals(ctx context.Context) capability.Result {
	return capability.Result{}
}

type queueFake struct {
	requests []ProjectRequest
	err      error
}

func (q *queueFake) EnqueueProjectRequest(ctx context.Context, req ProjectRequest) error {
	if q.err != nil {
		return q.err
	}
	q.requests = append(q.requests, req)
	return nil
}

func gapWithFailures(count int) Gap {
	return Gap{
		Category:      "book_flight",
		FailureCount:  count,
		Entities:      []string{"SFO", "JFK"},
		ErrorPatterns: []string{"not configured"},
	}
}

func TestEscalate_L1Compose(t *testing.T) {
	svc := &synthFake{composeOK: true}
	queue := &queueFake{}
	ladder := NewLadder(NewSynthesizer(svc), queue, nil)

	res, err := ladder.Escalate(context.Background(), gapWithFailures(5))
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if res.Tier != TierL1 || !res.Resolved {
		t.Errorf("Expected resolved L1, got tier=%s resolved=%v", res.Tier, res.Resolved)
	}
	if res.RequiresNotification {
		t.Error("Expected no notification for L1")
	}
	if len(queue.requests) != 0 {
		t.Errorf("Expected no project requests, got %d", len(queue.requests))
	}
}

func TestEscalate_L2Synthesize(t *testing.T) {
	svc := &synthFake{synthesizeOK: true}
	queue := &queueFake{}
	ladder := NewLadder(NewSynthesizer(svc), queue, nil)

	res, err := ladder.Escalate(context.Background(), gapWithFailures(5))
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if res.Tier != TierL2 || !res.Resolved {
		t.Errorf("Expected resolved L2, got tier=%s resolved=%v", res.Tier, res.Resolved)
	}
	if len(svc.topics) != 2 {
		t.Fatalf("Expected 2 synthesizer calls, got %d", len(svc.topics))
	}
	if !strings.Contains(svc.topics[1], "SFO, JFK") {
		t.Errorf("Expected entities in synthesis topic, got %q", svc.topics[1])
	}
}

func TestEscalate_L3HumanReview(t *testing.T) {
	queue := &queueFake{}
	ladder := NewLadder(NewSynthesizer(&synthFake{}), queue, nil)

	res, err := ladder.Escalate(context.Background(), gapWithFailures(5))
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if res.Tier != TierL3 {
		t.Errorf("Expected tier L3, got %s", res.Tier)
	}
	if res.Resolved {
		t.Error("Expected unresolved result")
	}
	if !res.RequiresNotification {
		t.Error("Expected notification required at L3")
	}
	if len(queue.requests) != 1 {
		t.Fatalf("Expected exactly one project request, got %d", len(queue.requests))
	}
	req := queue.requests[0]
	if req.Category != "book_flight" || req.FailureCount != 5 {
		t.Errorf("Unexpected request snapshot: %+v", req)
	}
	if req.ID == "" {
		t.Error("Expected request ID to be set")
	}
	if req.RequestedAt.IsZero() {
		t.Error("Expected request timestamp to be set")
	}
}

func TestEscalate_L4AtThreshold(t *testing.T) {
	queue := &queueFake{}
	ladder := NewLadder(NewSynthesizer(&synthFake{}), queue, nil)

	res, err := ladder.Escalate(context.Background(), gapWithFailures(10))
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if res.Tier != TierL4 {
		t.Errorf("Expected tier L4 at failure count 10, got %s", res.Tier)
	}
	if res.Resolved {
		t.Error("Expected unresolved result")
	}
	if !res.RequiresNotification {
		t.Error("Expected notification required at L4")
	}
	if len(queue.requests) != 1 {
		t.Errorf("Expected exactly one project request, got %d", len(queue.requests))
	}
}

func TestEscalate_JustBelowThresholdIsL3(t *testing.T) {
	queue := &queueFake{}
	ladder := NewLadder(NewSynthesizer(&synthFake{}), queue, nil)

	res, err := ladder.Escalate(context.Background(), gapWithFailures(9))
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if res.Tier != TierL3 {
		t.Errorf("Expected tier L3 at failure count 9, got %s", res.Tier)
	}
}

func TestEscalate_QueueFailureIsFatal(t *testing.T) {
	queue := &queueFake{err: errors.New("disk full")}
	ladder := NewLadder(NewSynthesizer(&synthFake{}), queue, nil)

	_, err := ladder.Escalate(context.Background(), gapWithFailures(5))
	if err == nil {
		t.Fatal("Expected error when review queue store fails")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
}
