package ratelimit

import (
	"context"
	"sync"
	"time"

	"zkcred/internal/domain"
)

const defaultMaxKeys = 10000

// MemoryLimiterConfig sizes the in-process limiter.
type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

// window is one key's fixed window.
type window struct {
	used  int
	until time.Time
}

// MemoryLimiter keeps fixed windows in process. When every slot holds a live
// window, new keys are denied until the earliest window closes.
type MemoryLimiter struct {
	now     func() time.Time
	maxKeys int

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &MemoryLimiter{now: now, maxKeys: maxKeys, windows: make(map[string]*window)}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, reset, ok := m.lookup(key, now, span)
	if !ok {
		return domain.RateLimitDecision{Limit: limit, ResetAt: reset}, nil
	}
	decision := domain.RateLimitDecision{Limit: limit, ResetAt: w.until}
	if w.used < limit {
		w.used++
		decision.Allowed = true
		decision.Remaining = limit - w.used
	}
	return decision, nil
}

// lookup returns the live window for key, opening one if there is room. When
// the table is full it reports the earliest time a slot frees up.
func (m *MemoryLimiter) lookup(key string, now time.Time, span time.Duration) (*window, time.Time, bool) {
	if w, ok := m.windows[key]; ok && !now.After(w.until) {
		return w, time.Time{}, true
	}
	delete(m.windows, key)

	var earliest time.Time
	if len(m.windows) >= m.maxKeys {
		for k, w := range m.windows {
			if now.After(w.until) {
				delete(m.windows, k)
				continue
			}
			if earliest.IsZero() || w.until.Before(earliest) {
				earliest = w.until
			}
		}
	}
	if len(m.windows) >= m.maxKeys {
		return nil, earliest, false
	}
	w := &window{until: now.Add(span)}
	m.windows[key] = w
	return w, time.Time{}, true
}

var _ domain.RateLimiter = (*MemoryLimiter)(nil)
