package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Memory is a fixed window limiter kept in process memory. It is used when
// no Redis is configured, so limits are per instance.
type Memory struct {
	store limiter.Store

	mu       sync.Mutex
	limiters map[limiter.Rate]*limiter.Limiter
}

// NewMemory builds an in-memory limiter whose keys carry prefix.
func NewMemory(prefix string) *Memory {
	return &Memory{
		store:    memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}),
		limiters: map[limiter.Rate]*limiter.Limiter{},
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if m == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lc, err := m.limiterFor(window, max).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), fmt.Errorf("ratelimit: memory store: %w", err)
	}
	return !lc.Reached, int(lc.Remaining), time.Unix(lc.Reset, 0), nil
}

func (m *Memory) limiterFor(window time.Duration, max int) *limiter.Limiter {
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[rate]
	if !ok {
		l = limiter.New(m.store, rate)
		m.limiters[rate] = l
	}
	return l
}
