// Package heartbeat runs the periodic self-check: parse the check list,
// aggregate pillar signals, and decide follow-up actions.
package heartbeat

import (
	"regexp"
	"strings"
	"time"
)

// Frequency tiers for heartbeat checks.
type Frequency string

const (
	FreqAlways Frequency = "always"
	FreqDaily  Frequency = "daily"
	FreqWeekly Frequency = "weekly"
)

// Check is one item from the heartbeat checklist.
type Check struct {
	Description string
	Frequency   Frequency
	Checked     bool
}

var checkboxRe = regexp.MustCompile(`^-\s+\[([ xX])\]\s+(.+)$`)

// ParseConfig parses a HEARTBEAT.md document into structured checks. Sections
// are introduced by "## Always", "## Daily", "## Weekly" headers (case
// insensitive); items are markdown checkboxes. Lines that match neither are
// skipped.
func ParseConfig(markdown string) []Check {
	var checks []Check
	current := FreqAlways

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "##") {
			header := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "##")))
			switch {
			case strings.HasPrefix(header, "always"):
				current = FreqAlways
			case strings.HasPrefix(header, "daily"):
				current = FreqDaily
			case strings.HasPrefix(header, "weekly"):
				current = FreqWeekly
			}
			continue
		}

		if m := checkboxRe.FindStringSubmatch(trimmed); m != nil {
			checks = append(checks, Check{
				Description: strings.TrimSpace(m[2]),
				Frequency:   current,
				Checked:     m[1] != " ",
			})
		}
	}

	return checks
}

// ActiveChecks filters the checks that run at the given tier. Daily runs
// include always-checks; weekly runs include everything.
func ActiveChecks(checks []Check, freq Frequency) []Check {
	priorities := map[Frequency]int{FreqAlways: 0, FreqDaily: 1, FreqWeekly: 2}
	threshold := priorities[freq]

	var active []Check
	for _, c := range checks {
		if priorities[c.Frequency] <= threshold {
			active = append(active, c)
		}
	}
	return active
}

// FrequencyAt picks the heartbeat tier for a given time: weekly on the first
// run after Sunday midnight UTC, daily on the first run after any midnight
// UTC, always otherwise.
func FrequencyAt(now time.Time) Frequency {
	utc := now.UTC()
	if utc.Weekday() == time.Sunday && utc.Hour() < 1 {
		return FreqWeekly
	}
	if utc.Hour() < 1 {
		return FreqDaily
	}
	return FreqAlways
}
