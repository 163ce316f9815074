package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
)

// MemoryRateLimitStore keeps fixed-window counters in process memory
type MemoryRateLimitStore struct {
	entries map[string]core.RateLimitEntry
	clock   ports.Clock
	mu      sync.Mutex
}

// NewMemoryRateLimitStore creates a new in-memory rate-limit store
func NewMemoryRateLimitStore(clock ports.Clock) *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		entries: make(map[string]core.RateLimitEntry),
		clock:   clock,
	}
}

// Take counts one request for key. A rejected request leaves the window
// untouched.
func (s *MemoryRateLimitStore) Take(_ context.Context, key string, limit int, window time.Duration) (core.RateLimitDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.WindowResetAt) {
		entry = core.RateLimitEntry{Key: key, Count: 1, WindowResetAt: now.Add(window)}
		s.entries[key] = entry
		return core.RateLimitDecision{Allowed: true, Count: 1}, nil
	}

	if entry.Count < limit {
		entry.Count++
		s.entries[key] = entry
		return core.RateLimitDecision{Allowed: true, Count: entry.Count}, nil
	}

	return core.RateLimitDecision{
		Allowed:    false,
		Count:      entry.Count,
		RetryAfter: entry.WindowResetAt.Sub(now),
	}, nil
}

// Sweep removes entries whose window has ended
func (s *MemoryRateLimitStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.WindowResetAt) {
			delete(s.entries, key)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of tracked keys
func (s *MemoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ ports.RateLimitStore = (*MemoryRateLimitStore)(nil)
