// Package ratelimit enforces fixed-window request limits on the read
// endpoints, keyed by user and endpoint class.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// EndpointClass groups endpoints that share a rate budget.
type EndpointClass string

const (
	ClassFeed    EndpointClass = "feed"
	ClassExplore EndpointClass = "explore"
)

type windowState struct {
	windowStart time.Time
	count       int
}

// Limiter is a fixed-window counter per (user, endpoint class). When a
// window's budget is spent, requests fail fast with a retry-after hint of
// the time remaining in the window.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	limits map[EndpointClass]int
	states map[string]*windowState
	now    func() time.Time
}

// NewLimiter creates a limiter with the given window and per-class limits.
func NewLimiter(window time.Duration, limits map[EndpointClass]int) *Limiter {
	return &Limiter{
		window: window,
		limits: limits,
		states: make(map[string]*windowState),
		now:    time.Now,
	}
}

// SetClock replaces the time source for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Allow consumes one request from the user's window. When the budget is
// exhausted it returns false with the limit and the seconds until the
// window resets.
func (l *Limiter) Allow(userID string, class EndpointClass) (allowed bool, limit int, retryAfterSeconds int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[class]
	if !ok || limit <= 0 {
		return true, 0, 0
	}

	now := l.now()
	key := userID + ":" + string(class)
	state, ok := l.states[key]
	if !ok || now.Sub(state.windowStart) >= l.window {
		state = &windowState{windowStart: now}
		l.states[key] = state
	}

	if state.count >= limit {
		remaining := l.window - now.Sub(state.windowStart)
		retryAfter := int(math.Ceil(remaining.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, limit, retryAfter
	}

	state.count++
	return true, limit, 0
}
