package autonomy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Tier identifies one rung of the escalation ladder.
type Tier string

// Escalation tiers, cheapest first.
const (
	TierL1 Tier = "L1" // compose existing capabilities
	TierL2 Tier = "L2" // synthesize a new capability
	TierL3 Tier = "L3" // human review
	TierL4 Tier = "L4" // critical human review
)

// criticalFailureThreshold selects L4 over L3.
const criticalFailureThreshold = 10

// ProjectRequest is an immutable snapshot of a gap taken when escalation
// reaches human review.
type ProjectRequest struct {
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	Entities      []string  `json:"entities"`
	FailureCount  int       `json:"failure_count"`
	ErrorPatterns []string  `json:"error_patterns"`
	RequestedAt   time.Time `json:"requested_at"`
}

// EscalationResult reports which tier handled a gap.
type EscalationResult struct {
	Tier                 Tier
	Resolved             bool
	Description          string
	RequiresNotification bool
	Request              *ProjectRequest
}

// ReviewQueue stores project requests pending human review.
type ReviewQueue interface {
	EnqueueProjectRequest(ctx context.Context, req ProjectRequest) error
}

// Ladder resolves capability gaps through increasingly expensive tiers:
// compose, synthesize, then human review (critical review past the failure
// threshold).
type Ladder struct {
	synth  *Synthesizer
	queue  ReviewQueue
	logger *slog.Logger
}

// NewLadder creates an escalation ladder.
func NewLadder(synth *Synthesizer, queue ReviewQueue, logger *slog.Logger) *Ladder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ladder{synth: synth, queue: queue, logger: logger}
}

// Escalate runs the tiers in order and returns at the first one that
// resolves the gap. L1/L2 failures cascade silently; only a review-queue
// storage failure returns an error, since losing a review request is an
// operator-facing fault.
func (l *Ladder) Escalate(ctx context.Context, gap Gap) (EscalationResult, error) {
	synthesis := l.synth.Fill(ctx, gap)
	if synthesis.Success {
		l.logger.Info("Gap resolved by synthesis",
			"category", gap.Category, "tier", string(synthesis.Tier))
		return EscalationResult{
			Tier:        synthesis.Tier,
			Resolved:    true,
			Description: synthesis.Description,
		}, nil
	}

	req := ProjectRequest{
		ID:            uuid.NewString(),
		Category:      gap.Category,
		Entities:      append([]string(nil), gap.Entities...),
		FailureCount:  gap.FailureCount,
		ErrorPatterns: append([]string(nil), gap.ErrorPatterns...),
		RequestedAt:   time.Now(),
	}
	if err := l.queue.EnqueueProjectRequest(ctx, req); err != nil {
		return EscalationResult{}, fmt.Errorf("enqueue project request for %q: %w", gap.Category, err)
	}

	if gap.FailureCount >= criticalFailureThreshold {
		l.logger.Warn("Critical capability gap stored for review",
			"category", gap.Category, "failure_count", gap.FailureCount)
		return EscalationResult{
			Tier: TierL4,
			Description: fmt.Sprintf("Critical capability gap: %q failed %d times. Requires immediate attention.",
				gap.Category, gap.FailureCount),
			RequiresNotification: true,
			Request:              &req,
		}, nil
	}

	l.logger.Info("Capability gap stored for review",
		"category", gap.Category, "failure_count", gap.FailureCount)
	return EscalationResult{
		Tier: TierL3,
		Description: fmt.Sprintf("Stored project request for %q. Notification queued.",
			gap.Category),
		RequiresNotification: true,
		Request:              &req,
	}, nil
}
