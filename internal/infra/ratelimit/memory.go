package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"pelorus/internal/domain"
)

// memoryLimiter is the in-process fixed-window counter. Windows are created
// lazily on first hit and overwritten once expired; restart drops all
// counters, which is acceptable for abuse dampening.
type memoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

type window struct {
	count   int
	resetAt time.Time
}

type MemoryConfig struct {
	// Now overrides the clock, for tests.
	Now     func() time.Time
	MaxKeys int
}

func NewMemory(cfg MemoryConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &memoryLimiter{
		now:     cfg.Now,
		windows: make(map[string]*window),
		maxKeys: cfg.MaxKeys,
	}
}

// Allow performs the read-check-increment under the lock; no blocking call
// happens while the lock is held.
func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, windowLen time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && now.After(w.resetAt) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.expire(now)
		}
		if len(m.windows) >= m.maxKeys {
			return domain.RateLimitDecision{}, errors.New("rate limiter key capacity exceeded")
		}
		w = &window{resetAt: now.Add(windowLen)}
		m.windows[key] = w
	}

	if w.count < limit {
		w.count++
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - w.count,
			ResetAt:   w.resetAt,
		}, nil
	}
	return domain.RateLimitDecision{
		Allowed: false,
		Limit:   limit,
		ResetAt: w.resetAt,
	}, nil
}

func (m *memoryLimiter) expire(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, key)
		}
	}
}
