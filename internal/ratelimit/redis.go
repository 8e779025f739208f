package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// INCR and PEXPIRE run in one script so the counter and its expiry are set atomically.
var acquireScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisLimiter shares fixed-window counters across worker processes.
type RedisLimiter struct {
	client  *redis.Client
	logger  *zap.Logger
	prefix  string
	timeout time.Duration
}

func NewRedisLimiter(client *redis.Client, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		logger:  logger,
		prefix:  "vessel:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

func (rl *RedisLimiter) TryAcquire(ctx context.Context, key Key, policy Policy) Decision {
	policy = policy.normalized()
	if policy.Ceiling <= 0 {
		return Decision{Allowed: true}
	}

	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	res, err := acquireScript.Run(ctx, rl.client, []string{rl.prefix + key.String()}, policy.Window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		// Fail open when Redis is unreachable.
		rl.logger.Error("Rate limiter redis error",
			zap.Error(err),
			zap.String("key", key.String()),
		)
		return Decision{Allowed: true}
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl <= 0 {
		ttl = policy.Window
	}
	if count > policy.Ceiling {
		return Decision{Allowed: false, Count: count, RetryAfter: ttl}
	}
	return Decision{Allowed: true, Count: count}
}

func (rl *RedisLimiter) Close() {}
