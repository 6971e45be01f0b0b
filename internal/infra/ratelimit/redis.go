package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zkcred/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "zkcred:rl:"

// windowScript counts a hit and returns {hits, ttl_ms}. A key that lost its
// expiry is given one again so it cannot pin a verifier at the limit.
var windowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if hits == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisLimiter shares fixed windows across daemons.
type RedisLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, now func() time.Time) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, now: now}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	spanMillis := max(span.Milliseconds(), 1000)
	reply, err := windowScript.Run(ctx, r.client, []string{redisKeyPrefix + key}, spanMillis).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(reply) != 2 {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit: unexpected reply %v", reply)
	}
	hits, ttl := reply[0], reply[1]
	return domain.RateLimitDecision{
		Allowed:   hits <= int64(limit),
		Limit:     limit,
		Remaining: int(max(int64(limit)-hits, 0)),
		ResetAt:   r.now().Add(time.Duration(ttl) * time.Millisecond),
	}, nil
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)
