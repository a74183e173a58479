package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// Action identifies the class of request being limited. Each class has its
// own ceiling and its own counter space, so the same key can be tracked
// independently for logins and uploads.
type Action string

const (
	// ActionLogin limits authentication attempts, keyed by client IP.
	ActionLogin Action = "login"
	// ActionUpload limits record creation, keyed by user id.
	ActionUpload Action = "upload"
	// ActionAPI limits general API usage, keyed by user id.
	ActionAPI Action = "api"
)

// Limit describes a fixed-window ceiling.
type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits returns the per-action ceilings.
func DefaultLimits() map[Action]Limit {
	return map[Action]Limit{
		ActionLogin:  {Max: 5, Window: time.Minute},
		ActionUpload: {Max: 10, Window: time.Minute},
		ActionAPI:    {Max: 100, Window: time.Minute},
	}
}

// window tracks one (action, key) counter until its reset instant.
type window struct {
	count int
	reset time.Time
}

// Limiter is a fixed-window rate limiter. Counters are in-memory and
// process-lifetime only; expired entries are pruned lazily on a random
// fraction of calls rather than by a sweep timer.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limits  map[Action]Limit
	now     func() time.Time

	// pruneChance is the inverse probability of a pruning pass per call.
	pruneChance int
}

// New creates a Limiter with the given per-action limits.
// Pass nil to use DefaultLimits.
func New(limits map[Action]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{
		windows:     make(map[string]*window),
		limits:      limits,
		now:         time.Now,
		pruneChance: 100,
	}
}

// Allow records one call for (action, key) and reports whether it is within
// the window's ceiling. The first call at or past the reset instant restarts
// the window with a count of 1. Unknown actions are never limited.
func (l *Limiter) Allow(action Action, key string) bool {
	limit, ok := l.limits[action]
	if !ok || limit.Max <= 0 {
		return true
	}

	now := l.now()
	mapKey := string(action) + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	if rand.Intn(l.pruneChance) == 0 {
		l.pruneLocked(now)
	}

	w, ok := l.windows[mapKey]
	if !ok || !now.Before(w.reset) {
		l.windows[mapKey] = &window{count: 1, reset: now.Add(limit.Window)}
		return true
	}

	w.count++
	return w.count <= limit.Max
}

// pruneLocked removes expired windows. Caller must hold l.mu.
func (l *Limiter) pruneLocked(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, key)
		}
	}
}

// Len returns the number of tracked windows, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
