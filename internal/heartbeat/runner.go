package heartbeat

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/moltlabs/voice-gateway/internal/capability"
)

// defaultChecklist is used when no HEARTBEAT.md is configured.
const defaultChecklist = `
## Always (every 30 min)
- [ ] Check backend tunnel connectivity
- [ ] Check active voice session count
- [ ] Report system health to watchdog

## Daily
- [ ] Review conversation logs for quality
- [ ] Check cost and usage metrics

## Weekly
- [ ] Rotate transcript archive
- [ ] Review escalation ladder performance
- [ ] Update knowledge cache
`

// Result summarizes one heartbeat run.
type Result struct {
	Timestamp  time.Time    `json:"timestamp"`
	Frequency  Frequency    `json:"frequency"`
	ChecksRun  int          `json:"checksRun"`
	Signals    SignalReport `json:"signals"`
	Actions    []string     `json:"actions"`
	Noteworthy bool         `json:"noteworthy"`
}

// Runner executes heartbeats: load the checklist, aggregate signals, and
// derive actions. Scheduling is the caller's concern.
type Runner struct {
	svc           capability.Service
	tunnelURL     string
	checklistPath string
	logger        *slog.Logger
}

// NewRunner creates a heartbeat runner. checklistPath may be empty; the
// built-in checklist is used then, or when the file cannot be read.
func NewRunner(svc capability.Service, tunnelURL, checklistPath string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{svc: svc, tunnelURL: tunnelURL, checklistPath: checklistPath, logger: logger}
}

// Run executes one heartbeat at the tier implied by the current time.
func (r *Runner) Run(ctx context.Context) Result {
	frequency := FrequencyAt(time.Now())

	checks := ParseConfig(r.loadChecklist())
	active := ActiveChecks(checks, frequency)

	signals := AggregateSignals(ctx, r.svc, r.tunnelURL)

	var actions []string
	noteworthy := false

	if !signals.TunnelHealth.OK {
		actions = append(actions, "backend tunnel offline: "+signals.TunnelHealth.Error)
		noteworthy = true
	}
	if signals.Watchdog.OK && len(signals.Watchdog.Data) > 0 {
		actions = append(actions, "watchdog signals received")
	}
	if signals.PendingApprovals.OK && len(signals.PendingApprovals.Data) > 0 {
		actions = append(actions, "pending approvals available")
		noteworthy = true
	}

	result := Result{
		Timestamp:  time.Now(),
		Frequency:  frequency,
		ChecksRun:  len(active),
		Signals:    signals,
		Actions:    actions,
		Noteworthy: noteworthy,
	}

	r.logger.Info("Heartbeat complete",
		"frequency", string(frequency),
		"checks", len(active),
		"actions", len(actions),
		"noteworthy", noteworthy)

	return result
}

func (r *Runner) loadChecklist() string {
	if r.checklistPath == "" {
		return defaultChecklist
	}
	raw, err := os.ReadFile(r.checklistPath)
	if err != nil {
		r.logger.Warn("Failed to read heartbeat checklist, using default",
			"path", r.checklistPath, "error", err)
		return defaultChecklist
	}
	return string(raw)
}

// Start runs heartbeats on the given interval until ctx is done.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Run(ctx)
			}
		}
	}()
}
