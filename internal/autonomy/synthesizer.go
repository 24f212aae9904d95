package autonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moltlabs/voice-gateway/internal/capability"
)

// SynthesisResult is the outcome of a compose or synthesize attempt.
type SynthesisResult struct {
	Tier        Tier
	Success     bool
	Description string
	Data        json.RawMessage
}

// Synthesizer tries to fill a capability gap in two tiers: compose existing
// capabilities, then synthesize a new one via the generative pillar. A call
// that errors counts as "no solution found", never as a failure of the
// synthesizer itself.
type Synthesizer struct {
	svc capability.Service
}

// NewSynthesizer creates a synthesizer over the given capability service.
func NewSynthesizer(svc capability.Service) *Synthesizer {
	return &Synthesizer{svc: svc}
}

// Fill attempts compose first, then synthesize, returning the first success
// or the synthesize failure.
func (s *Synthesizer) Fill(ctx context.Context, gap Gap) SynthesisResult {
	if res := s.tryCompose(ctx, gap); res.Success {
		return res
	}
	return s.trySynthesize(ctx, gap)
}

// tryCompose asks the synthesizer pillar for existing capabilities that can
// be chained to cover the category.
func (s *Synthesizer) tryCompose(ctx context.Context, gap Gap) SynthesisResult {
	res := s.svc.SynthesizerExtract(ctx, gap.Category)
	if res.OK && len(res.Data) > 0 {
		return SynthesisResult{
			Tier:        TierL1,
			Success:     true,
			Description: fmt.Sprintf("composed existing capabilities for %q", gap.Category),
			Data:        res.Data,
		}
	}
	return SynthesisResult{
		Tier:        TierL1,
		Description: fmt.Sprintf("no existing capabilities found for %q", gap.Category),
	}
}

// trySynthesize asks the generative pillar to build a new capability from the
// gap's category and entities.
func (s *Synthesizer) trySynthesize(ctx context.Context, gap Gap) SynthesisResult {
	topic := fmt.Sprintf("Create capability for intent %q handling entities: %s",
		gap.Category, strings.Join(gap.Entities, ", "))
	res := s.svc.SynthesizerExtract(ctx, topic)
	if res.OK && len(res.Data) > 0 {
		return SynthesisResult{
			Tier:        TierL2,
			Success:     true,
			Description: fmt.Sprintf("synthesized new capability for %q", gap.Category),
			Data:        res.Data,
		}
	}
	return SynthesisResult{
		Tier:        TierL2,
		Description: fmt.Sprintf("synthesis failed for %q", gap.Category),
	}
}
