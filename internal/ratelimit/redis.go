package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// The script prunes expired members, rejects when the window is full, and
// otherwise records the event, all in one round trip so concurrent checks
// for the same key cannot both slip under the ceiling.
var slidingWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[2]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[3], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter implements the sliding-window Limiter contract on Redis so
// multiple processes share one window per key.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLimiter creates a limiter with the given key prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSuffix(trimmed, ":"),
	}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, window time.Duration, max int) error {
	if max <= 0 || window <= 0 {
		return nil
	}

	nowMs := time.Now().UnixMilli()
	windowMs := window.Milliseconds()
	fullKey := fmt.Sprintf("%s:%s", l.prefix, key)
	member := fmt.Sprintf("%d-%d", nowMs, time.Now().UnixNano())

	admitted, err := slidingWindowScript.Run(ctx, l.client,
		[]string{fullKey},
		nowMs-windowMs, max, nowMs, member, windowMs,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis limiter check failed: %w", err)
	}
	if admitted == 0 {
		return ErrRateLimitExceeded
	}
	return nil
}
