package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps one {count, windowResetAt} record per user:endpoint
// key under a mutex. State is neither shared across process instances nor
// preserved over restarts; the Redis backend carries the same semantics
// for multi-instance deployments.
type MemoryLimiter struct {
	rules Table

	mu      sync.Mutex
	entries map[string]*memoryEntry

	now func() time.Time
}

type memoryEntry struct {
	count         int
	windowResetAt time.Time
}

// NewMemoryLimiter builds a process-local limiter over the rule table.
func NewMemoryLimiter(rules Table) *MemoryLimiter {
	return &MemoryLimiter{
		rules:   rules,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Rule exposes the endpoint's configured rule.
func (l *MemoryLimiter) Rule(endpoint string) Rule {
	return l.rules.Rule(endpoint)
}

// Check admits or denies one request. It never returns an error: the
// process-local map cannot be unreachable.
func (l *MemoryLimiter) Check(_ context.Context, userID uint, endpoint string) (Decision, error) {
	rule := l.rules.Rule(endpoint)
	key := entryKey(userID, endpoint)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.windowResetAt) {
		e = &memoryEntry{count: 1, windowResetAt: now.Add(rule.Window)}
		l.entries[key] = e
		return Decision{
			Allowed:   true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests - 1,
			ResetAt:   e.windowResetAt,
		}, nil
	}

	if e.count < rule.MaxRequests {
		e.count++
		return Decision{
			Allowed:   true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests - e.count,
			ResetAt:   e.windowResetAt,
		}, nil
	}

	return Decision{
		Allowed:    false,
		Limit:      rule.MaxRequests,
		Remaining:  0,
		RetryAfter: retryAfter(e.windowResetAt, now),
		ResetAt:    e.windowResetAt,
	}, nil
}

// Sweep drops records whose window closed more than olderThan ago and
// returns how many were removed. Safe to run concurrently with Check.
func (l *MemoryLimiter) Sweep(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := l.now().Add(-olderThan)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if e.windowResetAt.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live records, for tests and metrics.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
