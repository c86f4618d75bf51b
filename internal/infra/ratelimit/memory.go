package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nftcate/internal/domain"

	gocache "github.com/patrickmn/go-cache"
)

// memoryLimiter keeps the redis limiter's counting rules in process: every
// request increments its key, the first increment opens the window, and a key
// is over its limit once the count passes it.
type memoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows *gocache.Cache
	maxKeys int
}

type window struct {
	hits int
	ends time.Time
}

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

const defaultMaxKeys = 10000

func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	return &memoryLimiter{
		now:     cfg.Now,
		windows: gocache.New(gocache.NoExpiration, time.Minute),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, period time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if period <= 0 {
		period = time.Second
	}
	now := m.now()
	key = "nftcate:ratelimit:" + key

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.current(key, now)
	if !ok {
		if m.windows.ItemCount() >= m.maxKeys {
			m.sweep(now)
		}
		if m.windows.ItemCount() >= m.maxKeys {
			return domain.RateLimitDecision{}, fmt.Errorf("rate limiter tracks %d keys", m.maxKeys)
		}
		w = &window{ends: now.Add(period)}
		// The janitor drops the entry a little after the window on the wall
		// clock; current still checks ends against the injected clock.
		m.windows.Set(key, w, period+time.Second)
	}
	w.hits++

	remaining := limit - w.hits
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   w.hits <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   w.ends,
	}, nil
}

func (m *memoryLimiter) current(key string, now time.Time) (*window, bool) {
	v, ok := m.windows.Get(key)
	if !ok {
		return nil, false
	}
	w := v.(*window)
	if !now.Before(w.ends) {
		m.windows.Delete(key)
		return nil, false
	}
	return w, true
}

func (m *memoryLimiter) sweep(now time.Time) {
	m.windows.DeleteExpired()
	for key, item := range m.windows.Items() {
		if w := item.Object.(*window); !now.Before(w.ends) {
			m.windows.Delete(key)
		}
	}
}
