// Package ratelimit implements fixed-window rate limiting keyed by client
// address. The window state lives behind the Store interface so production
// can use a process-local map while multi-instance deployments opt into the
// Redis store.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time. Injectable for deterministic tests.
type Clock func() time.Time

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store consumes one token from the fixed window identified by key.
type Store interface {
	Take(ctx context.Context, key string, capacity int, window time.Duration) (Decision, error)
}

// Limiter enforces a fixed-window limit through its Store.
type Limiter struct {
	store    Store
	capacity int
	window   time.Duration
}

func NewLimiter(store Store, capacity int, window time.Duration) *Limiter {
	return &Limiter{store: store, capacity: capacity, window: window}
}

// Allow consumes one token for key. Store errors fail open: a broken
// backend must not take the relay down with it.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	d, err := l.store.Take(ctx, key, l.capacity, l.window)
	if err != nil {
		return Decision{Allowed: true, Remaining: l.capacity - 1, ResetAt: time.Now().Add(l.window)}
	}
	return d
}

// Capacity returns the per-window token capacity.
func (l *Limiter) Capacity() int { return l.capacity }

type bucket struct {
	tokens          int
	windowStartedAt time.Time
}

// MemoryStore keeps window state in a mutex-guarded map. Resets are lazy:
// a bucket is only refilled on the next Take for its key, and idle keys are
// never evicted. Single-process only; there is no cross-instance state.
type MemoryStore struct {
	mu      sync.Mutex
	clock   Clock
	buckets map[string]*bucket
}

// NewMemoryStore creates an in-process store. A nil clock uses time.Now.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

func (s *MemoryStore) Take(_ context.Context, key string, capacity int, window time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, windowStartedAt: now}
		s.buckets[key] = b
	}
	if now.Sub(b.windowStartedAt) > window {
		b.tokens = capacity
		b.windowStartedAt = now
	}
	resetAt := b.windowStartedAt.Add(window)
	if b.tokens <= 0 {
		// Deny without touching the window timestamp.
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	b.tokens--
	return Decision{Allowed: true, Remaining: b.tokens, ResetAt: resetAt}, nil
}
