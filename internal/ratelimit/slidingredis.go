package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether another request for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error)
}

// slidingWindow trims expired members, admits the request only while the
// set is below the limit and reports the oldest admitted score. Scores are
// unix microseconds passed as strings so Lua never reformats them.
//
// KEYS[1] set, ARGV: now, cutoff, limit, member, ttl ms.
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', KEYS[1], ARGV[5])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {allowed, count, oldest[2] or ARGV[1]}
`)

// SlidingRedis implements a sliding window rate limiter backed by a Redis
// sorted set per key. Rejected requests are not recorded, so a client that
// keeps retrying is released as soon as its oldest admitted request ages out.
type SlidingRedis struct {
	Client redis.UniversalClient
	Prefix string
}

// Allow implements Limiter.
func (l SlidingRedis) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error) {
	now := time.Now()
	if l.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, now.Add(window), nil
	}

	ttl := window.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	reply, err := slidingWindow.Run(ctx, l.Client, []string{l.Prefix + key},
		strconv.FormatInt(now.UnixMicro(), 10),
		strconv.FormatInt(now.Add(-window).UnixMicro(), 10),
		limit,
		uuid.NewString(),
		ttl,
	).Slice()
	if err != nil {
		return false, 0, now.Add(window), fmt.Errorf("ratelimit: redis: %w", err)
	}
	admitted, count, oldest, err := parseReply(reply)
	if err != nil {
		return false, 0, now.Add(window), err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return admitted, remaining, time.UnixMicro(oldest).Add(window), nil
}

func parseReply(reply []any) (bool, int64, int64, error) {
	if len(reply) != 3 {
		return false, 0, 0, fmt.Errorf("ratelimit: unexpected script reply %v", reply)
	}
	admitted, ok1 := reply[0].(int64)
	count, ok2 := reply[1].(int64)
	score, ok3 := reply[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return false, 0, 0, fmt.Errorf("ratelimit: unexpected script reply %v", reply)
	}
	oldest, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return false, 0, 0, fmt.Errorf("ratelimit: parse oldest score %q: %w", score, err)
	}
	return admitted == 1, count, int64(oldest), nil
}
