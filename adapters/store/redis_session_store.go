package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
)

// KeyPrefix namespaces every key this service writes to Redis
const KeyPrefix = "sigverifier:"

type redisSession struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Message       string    `json:"message"`
	Signature     string    `json:"signature"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (r redisSession) toSession(token string) core.Session {
	return core.Session{
		ID:            r.ID,
		Token:         token,
		WalletAddress: r.WalletAddress,
		Message:       r.Message,
		Signature:     r.Signature,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
	}
}

// RedisSessionStore is a Redis implementation of ports.SessionStore. Each
// session is a JSON value under its token with a TTL; a per-wallet set indexes
// tokens for ListByWallet.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  ports.Clock
}

// NewRedisSessionStore creates a new Redis session store
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, clock ports.Clock) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
		clock:  clock,
	}
}

func (s *RedisSessionStore) sessionKey(token string) string {
	return KeyPrefix + "session:" + token
}

func (s *RedisSessionStore) walletKey(address string) string {
	return KeyPrefix + "wallet:" + strings.ToLower(address)
}

// Create issues a new session token for an already verified wallet
func (s *RedisSessionStore) Create(ctx context.Context, walletAddress, message, signature string) (core.Session, error) {
	now := s.clock.Now()
	record := redisSession{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Message:       message,
		Signature:     signature,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to marshal session: %w", err)
	}

	for {
		token, err := newToken()
		if err != nil {
			return core.Session{}, err
		}

		sessionKey := s.sessionKey(token)
		ok, err := s.client.SetNX(ctx, sessionKey, payload, s.ttl).Result()
		if err != nil {
			return core.Session{}, fmt.Errorf("failed to store session: %w", err)
		}
		if !ok {
			continue
		}

		walletKey := s.walletKey(walletAddress)
		pipe := s.client.TxPipeline()
		pipe.SAdd(ctx, walletKey, token)
		pipe.Expire(ctx, walletKey, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			// An unindexed session would be invisible to ListByWallet
			if delErr := s.client.Del(ctx, sessionKey).Err(); delErr != nil {
				err = errors.Join(err, delErr)
			}
			return core.Session{}, fmt.Errorf("failed to index session: %w", err)
		}

		return record.toSession(token), nil
	}
}

func (s *RedisSessionStore) load(ctx context.Context, token string) (redisSession, bool, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisSession{}, false, nil
	}
	if err != nil {
		return redisSession{}, false, fmt.Errorf("failed to load session: %w", err)
	}

	var record redisSession
	if err := json.Unmarshal(raw, &record); err != nil {
		return redisSession{}, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return record, true, nil
}

func (s *RedisSessionStore) remove(ctx context.Context, token, walletAddress string) (bool, error) {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.sessionKey(token))
	pipe.SRem(ctx, s.walletKey(walletAddress), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return del.Val() > 0, nil
}

// Get resolves a token, evicting it if it has expired
func (s *RedisSessionStore) Get(ctx context.Context, token string) (core.Session, bool, error) {
	record, ok, err := s.load(ctx, token)
	if err != nil || !ok {
		return core.Session{}, false, err
	}

	session := record.toSession(token)
	if session.Expired(s.clock.Now()) {
		if _, err := s.remove(ctx, token, record.WalletAddress); err != nil {
			return core.Session{}, false, err
		}
		return core.Session{}, false, nil
	}

	return session, true, nil
}

// Destroy removes a session. It reports whether a record was removed.
func (s *RedisSessionStore) Destroy(ctx context.Context, token string) (bool, error) {
	record, ok, err := s.load(ctx, token)
	if err != nil || !ok {
		return false, err
	}
	return s.remove(ctx, token, record.WalletAddress)
}

// ListByWallet returns the live sessions of a wallet, oldest first. Index
// entries whose session is gone are pruned on the way.
func (s *RedisSessionStore) ListByWallet(ctx context.Context, walletAddress string) ([]core.Session, error) {
	walletKey := s.walletKey(walletAddress)
	tokens, err := s.client.SMembers(ctx, walletKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet sessions: %w", err)
	}

	now := s.clock.Now()
	var out []core.Session
	for _, token := range tokens {
		record, ok, err := s.load(ctx, token)
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := s.client.SRem(ctx, walletKey, token).Err(); err != nil {
				return nil, fmt.Errorf("failed to prune wallet index: %w", err)
			}
			continue
		}
		session := record.toSession(token)
		if session.Expired(now) {
			continue
		}
		out = append(out, session)
	}
	sortSessions(out)

	return out, nil
}

// CleanupExpired prunes wallet index entries whose session is gone or past
// its expiry. Session values themselves expire through their Redis TTL.
func (s *RedisSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	removed := 0

	iter := s.client.Scan(ctx, 0, KeyPrefix+"wallet:*", 100).Iterator()
	for iter.Next(ctx) {
		walletKey := iter.Val()
		tokens, err := s.client.SMembers(ctx, walletKey).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to read wallet index: %w", err)
		}

		for _, token := range tokens {
			record, ok, err := s.load(ctx, token)
			if err != nil {
				return removed, err
			}
			if !ok {
				if err := s.client.SRem(ctx, walletKey, token).Err(); err != nil {
					return removed, fmt.Errorf("failed to prune wallet index: %w", err)
				}
				removed++
				continue
			}
			if record.ExpiresAt.Before(now) {
				if _, err := s.remove(ctx, token, record.WalletAddress); err != nil {
					return removed, err
				}
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan wallet indexes: %w", err)
	}

	return removed, nil
}

var _ ports.SessionStore = (*RedisSessionStore)(nil)
