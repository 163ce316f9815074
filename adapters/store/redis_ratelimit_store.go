package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
)

// takeScript counts a request against a fixed window. A key at the limit is
// left alone so rejected requests neither grow the count nor move the reset.
// Returns {count, remaining ms, allowed}.
var takeScript = redis.NewScript(`
	local key = KEYS[1]
	local window = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	if current >= limit then
		local ttl = redis.call('PTTL', key)
		if ttl < 0 then
			redis.call('PEXPIRE', key, window)
			ttl = window
		end
		return {current, ttl, 0}
	end

	current = redis.call('INCR', key)
	if current == 1 then
		redis.call('PEXPIRE', key, window)
	end
	return {current, redis.call('PTTL', key), 1}
`)

// RedisRateLimitStore keeps fixed-window counters in Redis so every
// instance shares them. Windows end through key expiry.
type RedisRateLimitStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRateLimitStore creates a new Redis rate-limit store
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client: client,
		prefix: KeyPrefix + "ratelimit:",
	}
}

// Take counts one request for key
func (s *RedisRateLimitStore) Take(ctx context.Context, key string, limit int, window time.Duration) (core.RateLimitDecision, error) {
	res, err := takeScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return core.RateLimitDecision{}, fmt.Errorf("failed to take rate limit: %w", err)
	}
	if len(res) != 3 {
		return core.RateLimitDecision{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}

	decision := core.RateLimitDecision{
		Allowed: res[2] == 1,
		Count:   int(res[0]),
	}
	if !decision.Allowed {
		decision.RetryAfter = time.Duration(res[1]) * time.Millisecond
	}

	return decision, nil
}

// Sweep is a no-op: Redis expires finished windows itself
func (s *RedisRateLimitStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

var _ ports.RateLimitStore = (*RedisRateLimitStore)(nil)
