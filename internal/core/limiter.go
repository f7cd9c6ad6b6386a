package core

// limiter.go bounds the number of matcher calls in flight across all
// sessions.
//
// Each session allows only one match at a time, but many sessions share one
// matcher. The limiter uses a semaphore: when every slot is taken, a new
// match waits up to maxWait and then fails with ErrTooManyMatches.
// WaitForDrain lets shutdown wait for in-flight matches.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyMatches is returned when all match slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyMatches = errors.New("too many matches in progress, please try again later")

// DefaultMaxConcurrentMatches is the default limit for parallel matcher calls.
const DefaultMaxConcurrentMatches = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// MatchLimiter controls concurrent matcher calls using a semaphore pattern.
type MatchLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewMatchLimiter creates a limiter that allows at most maxConcurrent
// simultaneous matcher calls. Non-positive arguments select the defaults.
func NewMatchLimiter(maxConcurrent int, maxWait time.Duration) *MatchLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentMatches
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &MatchLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a match slot.
// Returns nil on success, ErrTooManyMatches if the wait times out, or the
// context error if ctx ends first. The caller MUST call Release on success.
func (l *MatchLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyMatches
	}
}

// TryAcquire takes a slot without blocking.
func (l *MatchLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *MatchLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of matcher calls in flight.
func (l *MatchLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *MatchLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no matcher calls are in flight or ctx ends.
func (l *MatchLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MatchLimiterStatus is a snapshot of the limiter for monitoring.
type MatchLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *MatchLimiter) Status() MatchLimiterStatus {
	return MatchLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.semaphore),
	}
}
