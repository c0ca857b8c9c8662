package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript atomically increments the window counter, arming the
// window TTL on first use.
// KEYS[1] = counter key
// ARGV[1] = capacity
// ARGV[2] = window length in milliseconds
// Returns: [count, 1=allowed/0=denied, remaining window ms]
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = redis.call('INCR', key)
if count == 1 then
    redis.call('PEXPIRE', key, window_ms)
end

local ttl = redis.call('PTTL', key)
if ttl < 0 then
    ttl = window_ms
end

if count > capacity then
    return {count, 0, ttl}
end
return {count, 1, ttl}
`)

// RedisStore implements Store on a shared Redis counter so multiple relay
// instances can share one window. Best effort: Redis errors surface to the
// Limiter, which fails open.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Take(ctx context.Context, key string, capacity int, window time.Duration) (Decision, error) {
	redisKey := fmt.Sprintf("relay:rl:%s", key)

	result, err := fixedWindowScript.Run(ctx, s.rdb, []string{redisKey},
		capacity, window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}

	count := result[0]
	allowed := result[1] == 1
	remaining := int64(capacity) - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := time.Now().Add(time.Duration(result[2]) * time.Millisecond)

	return Decision{
		Allowed:   allowed,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}
