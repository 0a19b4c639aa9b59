// Package metrics keeps process-wide generation counters.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests        int            `json:"requests"`
	Succeeded       int            `json:"succeeded"`
	BuildsPassed    int            `json:"builds_passed"`
	BuildsFailed    int            `json:"builds_failed"`
	Recoveries      int            `json:"recoveries"`
	RecoveriesWon   int            `json:"recoveries_won"`
	Fallbacks       int            `json:"fallbacks"`
	ProviderCalls   map[string]int `json:"provider_calls"`
	TotalDuration   time.Duration  `json:"total_duration_ns"`
	SuccessRate     float64        `json:"success_rate"`
	RecoveryRate    float64        `json:"recovery_rate"`
	AverageDuration time.Duration  `json:"average_duration_ns"`
}

// Tracker accumulates counters across concurrent requests.
type Tracker struct {
	mu sync.Mutex
	s  Snapshot
}

// NewTracker returns a zeroed Tracker.
func NewTracker() *Tracker {
	return &Tracker{s: Snapshot{ProviderCalls: make(map[string]int)}}
}

// Request records one finished generate or modify call.
func (t *Tracker) Request(success, fallback bool, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Requests++
	if success {
		t.s.Succeeded++
	}
	if fallback {
		t.s.Fallbacks++
	}
	t.s.TotalDuration += d
}

// Build records one build outcome.
func (t *Tracker) Build(passed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if passed {
		t.s.BuildsPassed++
	} else {
		t.s.BuildsFailed++
	}
}

// Recovery records one recovery run and whether it ended in a passing build.
func (t *Tracker) Recovery(won bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Recoveries++
	if won {
		t.s.RecoveriesWon++
	}
}

// Provider records a call to the named LLM provider.
func (t *Tracker) Provider(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.ProviderCalls[name]++
}

// Snapshot returns a copy of the counters with derived rates filled in.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.s
	out.ProviderCalls = make(map[string]int, len(t.s.ProviderCalls))
	for k, v := range t.s.ProviderCalls {
		out.ProviderCalls[k] = v
	}
	if out.Requests > 0 {
		out.SuccessRate = float64(out.Succeeded) / float64(out.Requests)
		out.AverageDuration = out.TotalDuration / time.Duration(out.Requests)
	}
	if out.Recoveries > 0 {
		out.RecoveryRate = float64(out.RecoveriesWon) / float64(out.Recoveries)
	}
	return out
}

// Reset zeroes every counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s = Snapshot{ProviderCalls: make(map[string]int)}
}
