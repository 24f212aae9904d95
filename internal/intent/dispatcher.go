package intent

import (
	"context"
	"encoding/json"

	"github.com/moltlabs/voice-gateway/internal/capability"
	"github.com/moltlabs/voice-gateway/internal/sideband"
)

// SourcedResponse is one successful capability result in a context frame.
type SourcedResponse struct {
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SourcedError is one failed capability result in a context frame.
type SourcedError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Dispatcher runs the full pipeline: extract intent, route it, and package
// the aggregated results as a context sideband message.
type Dispatcher struct {
	router *Router
}

// NewDispatcher creates a dispatcher over the given capability service.
func NewDispatcher(svc capability.Service) *Dispatcher {
	return &Dispatcher{router: NewRouter(svc)}
}

// Dispatch processes a sideband message. It returns the context message to
// send upstream plus the route result, or (nil, nil) when the message does
// not carry an intent.
func (d *Dispatcher) Dispatch(ctx context.Context, msg sideband.Message) (*sideband.Message, *RouteResult) {
	parsed := sideband.ParseIntent(msg)
	if parsed == nil {
		return nil, nil
	}

	result := d.router.Route(ctx, parsed)
	return packageResult(result), &result
}

// packageResult partitions results into responses and errors and wraps both
// into a single context message.
func packageResult(result RouteResult) *sideband.Message {
	responses := []SourcedResponse{}
	errors := []SourcedError{}
	for _, res := range result.Results {
		if res.OK {
			responses = append(responses, SourcedResponse{Source: res.Source, Data: res.Data})
		} else {
			errors = append(errors, SourcedError{Source: res.Source, Error: res.Error})
		}
	}

	return &sideband.Message{
		Type: sideband.TypeContext,
		Data: sideband.Data{
			IntentType: result.Category,
			ContextData: map[string]any{
				"intent":    result.Category,
				"responses": responses,
				"errors":    errors,
			},
		},
		Timestamp: sideband.Now(),
	}
}
