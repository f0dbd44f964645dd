// Package ratelimit implements the per-token/per-IP request limiter:
// every gateway route except /gw/health is rate-limited before
// authentication runs, keyed by the SHA-256 hex of the caller's
// x-api-key header (one key per token), falling back to client IP when
// the header is absent.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config is the token-bucket shape: burst capacity and steady refill rate.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter holds one token-bucket per key, evicting idle buckets on a
// fixed sweep so long-lived processes don't accumulate one bucket per
// IP address forever.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     Config
	now     func() time.Time
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func New(cfg Config) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Allow reports whether the request identified by key may proceed,
// consuming one token from its bucket if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastAccess = l.now()
	limiter := b.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Sweep evicts buckets untouched for longer than idleAfter, bounding
// memory for a process fielding many distinct tokens/IPs over its
// lifetime.
func (l *Limiter) Sweep(idleAfter time.Duration) int {
	cutoff := l.now().Add(-idleAfter)
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
