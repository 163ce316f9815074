package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
)

// MemorySessionStore is an in-memory implementation of ports.SessionStore.
// Records are lost on restart.
type MemorySessionStore struct {
	sessions map[string]core.Session
	ttl      time.Duration
	clock    ports.Clock
	mu       sync.Mutex
}

// NewMemorySessionStore creates a new in-memory session store issuing
// sessions that live for ttl
func NewMemorySessionStore(ttl time.Duration, clock ports.Clock) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]core.Session),
		ttl:      ttl,
		clock:    clock,
	}
}

// Create issues a new session token for an already verified wallet
func (s *MemorySessionStore) Create(_ context.Context, walletAddress, message, signature string) (core.Session, error) {
	token, err := newToken()
	if err != nil {
		return core.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 256 random bits do not collide in practice, but a duplicate must never
	// overwrite a live session
	for _, exists := s.sessions[token]; exists; _, exists = s.sessions[token] {
		if token, err = newToken(); err != nil {
			return core.Session{}, err
		}
	}

	now := s.clock.Now()
	session := core.Session{
		ID:            uuid.NewString(),
		Token:         token,
		WalletAddress: walletAddress,
		Message:       message,
		Signature:     signature,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	s.sessions[token] = session

	return session, nil
}

// Get resolves a token, evicting it if it has expired
func (s *MemorySessionStore) Get(_ context.Context, token string) (core.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return core.Session{}, false, nil
	}
	if session.Expired(s.clock.Now()) {
		delete(s.sessions, token)
		return core.Session{}, false, nil
	}

	return session, true, nil
}

// Destroy removes a session. It reports whether a record was removed.
func (s *MemorySessionStore) Destroy(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false, nil
	}
	delete(s.sessions, token)

	return true, nil
}

// ListByWallet returns the live sessions of a wallet, oldest first
func (s *MemorySessionStore) ListByWallet(_ context.Context, walletAddress string) ([]core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var out []core.Session
	for _, session := range s.sessions {
		if session.Expired(now) || !strings.EqualFold(session.WalletAddress, walletAddress) {
			continue
		}
		out = append(out, session)
	}
	sortSessions(out)

	return out, nil
}

// CleanupExpired drops every expired session and returns how many were removed
func (s *MemorySessionStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of stored records, expired or not
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func sortSessions(sessions []core.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)
