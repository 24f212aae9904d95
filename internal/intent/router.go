// Package intent routes parsed voice intents to capability calls and packages
// the aggregated results for the backend.
package intent

import (
	"context"
	"sync"

	"github.com/moltlabs/voice-gateway/internal/capability"
	"github.com/moltlabs/voice-gateway/internal/sideband"
)

// chatUserID identifies the gateway to the chat orchestrator.
const chatUserID = "voice-gateway"

// RouteResult aggregates the capability results for one dispatched intent.
// Results are ordered by the policy's call order, not by completion order.
type RouteResult struct {
	Category string
	Entities []string
	Results  []capability.Result
}

// Errors returns the failed results in policy order.
func (r RouteResult) Errors() []capability.Result {
	var failed []capability.Result
	for _, res := range r.Results {
		if !res.OK {
			failed = append(failed, res)
		}
	}
	return failed
}

// Router maps intent categories to fixed capability dispatch policies.
type Router struct {
	svc capability.Service
}

// NewRouter creates a router over the given capability service.
func NewRouter(svc capability.Service) *Router {
	return &Router{svc: svc}
}

// Route executes the dispatch policy for the intent's category. Unknown
// categories fall back to general chat. Calls within a policy run
// concurrently; a failed call does not abort its siblings.
func (r *Router) Route(ctx context.Context, in *sideband.ParsedIntent) RouteResult {
	entity := ""
	if len(in.Entities) > 0 {
		entity = in.Entities[0]
	}

	var results []capability.Result

	switch in.Category {
	case "project_status":
		results = r.parallel(
			func() capability.Result { return r.svc.ProjectStatus(ctx, entity) },
		)
	case "brainstorm":
		// Chat for ideas plus memory for prior context.
		results = r.parallel(
			func() capability.Result { return r.svc.Chat(ctx, in.Transcript, chatUserID) },
			func() capability.Result { return r.svc.Recall(ctx, in.Transcript) },
		)
	case "deploy":
		results = r.parallel(
			func() capability.Result { return r.svc.Workflows(ctx) },
		)
	case "remember":
		results = r.parallel(
			func() capability.Result { return r.svc.Ingest(ctx, in.Transcript, "voice-command") },
		)
	case "research":
		topic := entity
		if topic == "" {
			topic = in.Transcript
		}
		results = r.parallel(
			func() capability.Result { return r.svc.Recall(ctx, in.Transcript) },
			func() capability.Result { return r.svc.SynthesizerExtract(ctx, topic) },
			func() capability.Result { return r.svc.WorldModelSummary(ctx) },
		)
	case "command":
		results = r.parallel(
			func() capability.Result { return r.svc.Chat(ctx, in.Transcript, chatUserID) },
		)
	case "question":
		results = r.parallel(
			func() capability.Result { return r.svc.Chat(ctx, in.Transcript, chatUserID) },
			func() capability.Result { return r.svc.Recall(ctx, in.Transcript) },
		)
	default:
		results = r.parallel(
			func() capability.Result { return r.svc.Chat(ctx, in.Transcript, chatUserID) },
		)
	}

	return RouteResult{Category: in.Category, Entities: in.Entities, Results: results}
}

// parallel runs the calls concurrently and collects results positionally.
// Each call carries its own timeout, so one slow call cannot stall siblings
// beyond that bound.
func (r *Router) parallel(calls ...func() capability.Result) []capability.Result {
	results := make([]capability.Result, len(calls))
	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		go func(i int, call func() capability.Result) {
			defer wg.Done()
			results[i] = call()
		}(i, call)
	}
	wg.Wait()
	return results
}
