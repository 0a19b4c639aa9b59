package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestTrackerRates(t *testing.T) {
	tr := NewTracker()
	tr.Request(true, false, 2*time.Second)
	tr.Request(false, true, 4*time.Second)
	tr.Recovery(true)
	tr.Recovery(false)
	tr.Recovery(false)
	tr.Recovery(true)
	tr.Provider("anthropic")
	tr.Provider("anthropic")

	s := tr.Snapshot()
	if s.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", s.SuccessRate)
	}
	if s.RecoveryRate != 0.5 {
		t.Errorf("RecoveryRate = %v, want 0.5", s.RecoveryRate)
	}
	if s.AverageDuration != 3*time.Second {
		t.Errorf("AverageDuration = %v, want 3s", s.AverageDuration)
	}
	if s.Fallbacks != 1 {
		t.Errorf("Fallbacks = %d, want 1", s.Fallbacks)
	}
	if s.ProviderCalls["anthropic"] != 2 {
		t.Errorf("ProviderCalls[anthropic] = %d, want 2", s.ProviderCalls["anthropic"])
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.Provider("openai")
	s := tr.Snapshot()
	s.ProviderCalls["openai"] = 99
	if got := tr.Snapshot().ProviderCalls["openai"]; got != 1 {
		t.Errorf("tracker mutated through snapshot: got %d, want 1", got)
	}
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Request(true, false, time.Millisecond)
			tr.Build(true)
			tr.Provider("gemini")
		}()
	}
	wg.Wait()

	s := tr.Snapshot()
	if s.Requests != 100 || s.BuildsPassed != 100 || s.ProviderCalls["gemini"] != 100 {
		t.Errorf("lost updates: %+v", s)
	}
	tr.Reset()
	if tr.Snapshot().Requests != 0 {
		t.Error("Reset did not zero Requests")
	}
}
