package ratelimit

import (
	"sync"
	"time"
)

// DefaultCapacity and DefaultRefillPerSecond are the spec's steady-state
// defaults: a burst of up to 200 requests, refilling at 100 tokens/second.
const (
	DefaultCapacity        = 200.0
	DefaultRefillPerSecond = 100.0
)

// Limiter is a single, process-wide token bucket. The zero value is not
// ready to use; construct with New.
type Limiter struct {
	mu sync.Mutex

	capacity float64
	refill   float64 // tokens per second

	tokens     float64
	lastRefill time.Time

	now func() time.Time
}

// New constructs a Limiter with the given capacity and refill rate, full at
// construction time.
func New(capacity, refillPerSecond float64) *Limiter {
	return &Limiter{
		capacity:   capacity,
		refill:     refillPerSecond,
		tokens:     capacity,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// NewDefault constructs a Limiter using the spec's default capacity and
// refill rate.
func NewDefault() *Limiter {
	return New(DefaultCapacity, DefaultRefillPerSecond)
}

// Allow attempts to consume one token on behalf of peer (currently unused,
// reserved for a future per-peer dimension). It returns true if a token was
// available, false if the caller should be rejected with RateLimited.
func (l *Limiter) Allow(peer string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.refill
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.lastRefill = now
	}

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Tokens reports the current token count, for diagnostics and tests.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}
