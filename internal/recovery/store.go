package recovery

import (
	"sort"
	"sync"
)

// AttemptRecord is the attempt count for one error fingerprint.
type AttemptRecord struct {
	ErrorFingerprint string `json:"error_fingerprint"`
	AttemptCount     int    `json:"attempt_count"`
}

// AttemptStore counts recovery attempts per fingerprint. Implementations
// must be safe for concurrent use; Acquire checks and increments atomically
// so two requests sharing a store cannot both slip under the ceiling.
type AttemptStore interface {
	// Acquire increments the count for fp and returns the new count, unless
	// the count has already reached ceiling, in which case ok is false.
	Acquire(fp string, ceiling int) (attempt int, ok bool)
	Count(fp string) int
	Records() []AttemptRecord
	Reset()
}

// MemoryStore is an in-process AttemptStore guarded by a mutex.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Acquire(fp string, ceiling int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[fp] >= ceiling {
		return s.counts[fp], false
	}
	s.counts[fp]++
	return s.counts[fp], true
}

func (s *MemoryStore) Count(fp string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[fp]
}

// Records returns the counts sorted by fingerprint.
func (s *MemoryStore) Records() []AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AttemptRecord, 0, len(s.counts))
	for fp, n := range s.counts {
		out = append(out, AttemptRecord{ErrorFingerprint: fp, AttemptCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ErrorFingerprint < out[j].ErrorFingerprint })
	return out
}

func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int)
}
