// Package autonomy tracks capability gaps and escalates the ones the system
// cannot resolve on its own.
package autonomy

import (
	"sort"
	"sync"
	"time"
)

// Gap records repeated dispatch failures for one intent category.
type Gap struct {
	Category      string
	FailureCount  int
	LastSeenAt    time.Time
	Entities      []string
	ErrorPatterns []string
}

// Tracker accumulates gaps across the process lifetime. It is shared by all
// sessions; every operation takes the tracker lock so read-modify-write on a
// gap is atomic.
type Tracker struct {
	mu    sync.Mutex
	gaps  map[string]*Gap
	order []string
}

// NewTracker creates an empty gap tracker.
func NewTracker() *Tracker {
	return &Tracker{gaps: make(map[string]*Gap)}
}

// RecordFailure creates or updates the gap for category. Entities and the
// error text merge into their sets in insertion order, without duplicates.
func (t *Tracker) RecordFailure(category string, entities []string, errText string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	gap, ok := t.gaps[category]
	if !ok {
		gap = &Gap{Category: category}
		t.gaps[category] = gap
		t.order = append(t.order, category)
	}

	gap.FailureCount++
	gap.LastSeenAt = time.Now()
	for _, e := range entities {
		gap.Entities = appendUnique(gap.Entities, e)
	}
	gap.ErrorPatterns = appendUnique(gap.ErrorPatterns, errText)
}

// SignificantGaps returns copies of all gaps with FailureCount >= threshold,
// most failures first. Ties keep first-recorded order.
func (t *Tracker) SignificantGaps(threshold int) []Gap {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Gap
	for _, category := range t.order {
		if gap, ok := t.gaps[category]; ok && gap.FailureCount >= threshold {
			out = append(out, snapshotGap(gap))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FailureCount > out[j].FailureCount
	})
	return out
}

// Get returns a copy of the gap for category, if one is tracked.
func (t *Tracker) Get(category string) (Gap, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	gap, ok := t.gaps[category]
	if !ok {
		return Gap{}, false
	}
	return snapshotGap(gap), true
}

// All returns copies of every tracked gap in first-recorded order.
func (t *Tracker) All() []Gap {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Gap, 0, len(t.order))
	for _, category := range t.order {
		if gap, ok := t.gaps[category]; ok {
			out = append(out, snapshotGap(gap))
		}
	}
	return out
}

// Resolve removes the gap for category and reports whether one existed.
func (t *Tracker) Resolve(category string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.gaps[category]; !ok {
		return false
	}
	delete(t.gaps, category)
	for i, c := range t.order {
		if c == category {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func snapshotGap(gap *Gap) Gap {
	out := *gap
	out.Entities = append([]string(nil), gap.Entities...)
	out.ErrorPatterns = append([]string(nil), gap.ErrorPatterns...)
	return out
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
