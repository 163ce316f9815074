package ports

import (
	"context"
	"time"

	"github.com/layer-3/sigverifier/core"
)

// SessionStore owns session records. Absence is reported through the bool
// result, never as an error.
type SessionStore interface {
	Create(ctx context.Context, walletAddress, message, signature string) (core.Session, error)
	Get(ctx context.Context, token string) (core.Session, bool, error)
	Destroy(ctx context.Context, token string) (bool, error)
	ListByWallet(ctx context.Context, walletAddress string) ([]core.Session, error)
	CleanupExpired(ctx context.Context) (int, error)
}

// RateLimitStore keeps fixed-window counters per client key
type RateLimitStore interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (core.RateLimitDecision, error)
	Sweep(ctx context.Context) (int, error)
}

// RevocationStore remembers invalidated token identifiers until they would
// have expired anyway
type RevocationStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}
