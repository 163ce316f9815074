package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/sigverifier/ports"
)

// MemoryRevocationStore is an in-memory implementation of ports.RevocationStore
type MemoryRevocationStore struct {
	invalidated map[string]time.Time
	clock       ports.Clock
	mu          sync.Mutex
}

// NewMemoryRevocationStore creates a new in-memory revocation store
func NewMemoryRevocationStore(clock ports.Clock) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		invalidated: make(map[string]time.Time),
		clock:       clock,
	}
}

// InvalidateToken marks a token identifier as invalidated for expiry
func (s *MemoryRevocationStore) InvalidateToken(_ context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := s.clock.Now().Add(expiry)
	// Never shorten an existing invalidation
	if current, ok := s.invalidated[tokenID]; ok && current.After(until) {
		return nil
	}
	s.invalidated[tokenID] = until

	return nil
}

// IsTokenInvalidated checks if a token identifier is still invalidated
func (s *MemoryRevocationStore) IsTokenInvalidated(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.invalidated[tokenID]
	if !ok {
		return false, nil
	}
	if s.clock.Now().After(until) {
		delete(s.invalidated, tokenID)
		return false, nil
	}

	return true, nil
}

// Sweep drops invalidations that have run out
func (s *MemoryRevocationStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, until := range s.invalidated {
		if now.After(until) {
			delete(s.invalidated, id)
			removed++
		}
	}

	return removed, nil
}

var _ ports.RevocationStore = (*MemoryRevocationStore)(nil)
