package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/moltlabs/voice-gateway/internal/capability"
)

// SignalStatus is the outcome of one pillar query.
type SignalStatus struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// SignalReport aggregates all pillar signals from one heartbeat.
type SignalReport struct {
	Timestamp        time.Time    `json:"timestamp"`
	TunnelHealth     SignalStatus `json:"tunnelHealth"`
	Watchdog         SignalStatus `json:"watchdog"`
	RepoRadar        SignalStatus `json:"repoRadar"`
	WorldModel       SignalStatus `json:"worldModel"`
	PendingApprovals SignalStatus `json:"pendingApprovals"`
}

// healthCheckTimeout bounds the tunnel health probe.
const healthCheckTimeout = 10 * time.Second

// AggregateSignals queries the tunnel health endpoint and all pillars in
// parallel. Each query carries its own timeout, so one hanging pillar cannot
// delay the rest beyond that bound.
func AggregateSignals(ctx context.Context, svc capability.Service, tunnelURL string) SignalReport {
	report := SignalReport{Timestamp: time.Now()}

	var wg sync.WaitGroup
	wg.Add(5)
	go func() {
		defer wg.Done()
		report.TunnelHealth = checkTunnelHealth(ctx, tunnelURL)
	}()
	go func() {
		defer wg.Done()
		report.Watchdog = toStatus(svc.WatchdogSignals(ctx))
	}()
	go func() {
		defer wg.Done()
		report.RepoRadar = toStatus(svc.RepoRadarPatterns(ctx))
	}()
	go func() {
		defer wg.Done()
		report.WorldModel = toStatus(svc.WorldModelSummary(ctx))
	}()
	go func() {
		defer wg.Done()
		report.PendingApprovals = toStatus(svc.Approvals(ctx))
	}()
	wg.Wait()

	return report
}

func toStatus(res capability.Result) SignalStatus {
	return SignalStatus{OK: res.OK, Data: res.Data, Error: res.Error}
}

// checkTunnelHealth probes the backend's status endpoint over plain HTTP.
func checkTunnelHealth(ctx context.Context, tunnelURL string) SignalStatus {
	if tunnelURL == "" {
		return SignalStatus{OK: false, Error: "not configured"}
	}

	base := strings.TrimSuffix(tunnelURL, "/")
	base = strings.Replace(base, "wss://", "https://", 1)
	base = strings.Replace(base, "ws://", "http://", 1)

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return SignalStatus{OK: false, Error: err.Error()}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return SignalStatus{OK: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SignalStatus{OK: false, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return SignalStatus{OK: true}
}
