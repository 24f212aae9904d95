// Package capability provides typed request/response wrappers around the
// external capability services (chat orchestrator and pillar forge). Every
// call returns a Result; errors never cross the boundary as Go errors.
package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Result is the uniform outcome of a capability call. A failed call carries
// Error and OK=false; Source always names the capability that produced it.
type Result struct {
	OK     bool            `json:"ok"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Source string          `json:"source"`
}

// Service is the full capability surface used by the intent router, the
// synthesizer, and the heartbeat aggregator.
type Service interface {
	Chat(ctx context.Context, message, userID string) Result
	ProjectStatus(ctx context.Context, projectName string) Result
	Workflows(ctx context.Context) Result
	Approvals(ctx context.Context) Result
	Recall(ctx context.Context, query string) Result
	Ingest(ctx context.Context, content, source string) Result
	WorldModelSummary(ctx context.Context) Result
	RepoRadarPatterns(ctx context.Context) Result
	WatchdogSignals(ctx context.Context) Result
	SynthesizerExtract(ctx context.Context, topic string) Result
}

// DefaultTimeout bounds a single capability call.
const DefaultTimeout = 10 * time.Second

// Client implements Service over HTTP. An empty base URL marks the backing
// service as unconfigured; calls against it fail with "not configured"
// instead of reaching the network.
type Client struct {
	orchestratorURL string
	forgeURL        string
	httpClient      *http.Client
	timeout         time.Duration
}

// NewClient creates a capability client. Either base URL may be empty.
func NewClient(orchestratorURL, forgeURL string) *Client {
	return &Client{
		orchestratorURL: orchestratorURL,
		forgeURL:        forgeURL,
		httpClient:      &http.Client{Timeout: DefaultTimeout},
		timeout:         DefaultTimeout,
	}
}

// call performs one JSON request against base+path. The capability name tags
// the Result regardless of outcome.
func (c *Client) call(ctx context.Context, base, name, method, path string, body any) Result {
	if base == "" {
		return Result{OK: false, Error: "not configured", Source: name}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Result{OK: false, Error: fmt.Sprintf("encode request: %v", err), Source: name}
		}
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reqBody)
	if err != nil {
		return Result{OK: false, Error: err.Error(), Source: name}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: err.Error(), Source: name}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{OK: false, Error: fmt.Sprintf("HTTP %d", resp.StatusCode), Source: name}
	}

	var data json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Result{OK: false, Error: fmt.Sprintf("decode response: %v", err), Source: name}
	}

	return Result{OK: true, Data: data, Source: name}
}

// --- orchestrator calls ---

// Chat sends a message to the chat orchestrator.
func (c *Client) Chat(ctx context.Context, message, userID string) Result {
	return c.call(ctx, c.orchestratorURL, "chat", http.MethodPost, "/api/chat",
		map[string]string{"message": message, "userId": userID})
}

// ProjectStatus fetches the status of a named project.
func (c *Client) ProjectStatus(ctx context.Context, projectName string) Result {
	return c.call(ctx, c.orchestratorURL, "projects", http.MethodGet,
		"/api/projects?name="+url.QueryEscape(projectName), nil)
}

// Workflows lists available workflows.
func (c *Client) Workflows(ctx context.Context) Result {
	return c.call(ctx, c.orchestratorURL, "workflows", http.MethodGet, "/api/workflows", nil)
}

// Approvals lists pending approvals.
func (c *Client) Approvals(ctx context.Context) Result {
	return c.call(ctx, c.orchestratorURL, "approvals", http.MethodGet, "/api/approvals", nil)
}

// --- pillar forge calls ---

// Recall queries the memory pillar.
func (c *Client) Recall(ctx context.Context, query string) Result {
	return c.call(ctx, c.forgeURL, "recall", http.MethodPost, "/api/pillars/billmem/recall",
		map[string]string{"query": query})
}

// Ingest stores content in the memory pillar.
func (c *Client) Ingest(ctx context.Context, content, source string) Result {
	return c.call(ctx, c.forgeURL, "ingest", http.MethodPost, "/api/pillars/billmem/ingest",
		map[string]string{"content": content, "source": source})
}

// WorldModelSummary fetches the world-model pillar summary.
func (c *Client) WorldModelSummary(ctx context.Context) Result {
	return c.call(ctx, c.forgeURL, "worldmodel", http.MethodGet, "/api/pillars/worldmodel/summary", nil)
}

// RepoRadarPatterns fetches detected repository patterns.
func (c *Client) RepoRadarPatterns(ctx context.Context) Result {
	return c.call(ctx, c.forgeURL, "reporadar", http.MethodGet, "/api/pillars/reporadar/patterns", nil)
}

// WatchdogSignals fetches watchdog pillar signals.
func (c *Client) WatchdogSignals(ctx context.Context) Result {
	return c.call(ctx, c.forgeURL, "watchdog", http.MethodGet, "/api/pillars/watchdog/signals", nil)
}

// SynthesizerExtract asks the synthesizer pillar to extract or build a
// capability description for a topic.
func (c *Client) SynthesizerExtract(ctx context.Context, topic string) Result {
	return c.call(ctx, c.forgeURL, "synthesizer", http.MethodPost, "/api/pillars/synthesizer/extract",
		map[string]string{"topic": topic})
}
