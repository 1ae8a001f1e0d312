// Package ratelimit provides per-(user, endpoint) sliding-window admission
// control with interchangeable backends: a process-local counter map and a
// shared Redis-backed window, selected by configuration.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// FailurePolicy says what a caller should do when the limiter backend
// itself errors: admit the request (fail-open) or reject it (fail-closed).
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "allow"
	FailClosed FailurePolicy = "deny"
)

// Rule is one endpoint's admission window.
type Rule struct {
	MaxRequests    int
	Window         time.Duration
	OnBackendError FailurePolicy
}

// DefaultRule applies to endpoints missing from the table.
var DefaultRule = Rule{MaxRequests: 10, Window: time.Minute, OnBackendError: FailOpen}

// Table maps endpoint name to its rule.
type Table map[string]Rule

// Rule returns the endpoint's rule, falling back to DefaultRule. Missing
// or non-positive fields take the default values so a partial config entry
// cannot produce a zero-request window.
func (t Table) Rule(endpoint string) Rule {
	if r, ok := t[endpoint]; ok {
		if r.MaxRequests <= 0 {
			r.MaxRequests = DefaultRule.MaxRequests
		}
		if r.Window <= 0 {
			r.Window = DefaultRule.Window
		}
		if r.OnBackendError == "" {
			r.OnBackendError = FailOpen
		}
		return r
	}
	return DefaultRule
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter is the admission-control contract consumed by the HTTP layer.
// A non-nil error means the backend itself failed; the caller applies the
// rule's FailurePolicy, it is not a denial.
type Limiter interface {
	Check(ctx context.Context, userID uint, endpoint string) (Decision, error)
	Rule(endpoint string) Rule
}

// Sweeper is implemented by backends whose stale records the janitor can
// delete out-of-band.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

func entryKey(userID uint, endpoint string) string {
	return fmt.Sprintf("%d:%s", userID, endpoint)
}

// retryAfter rounds the remaining window up to whole seconds, matching the
// Retry-After header resolution.
func retryAfter(resetAt, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := (d + time.Second - 1) / time.Second * time.Second
	return secs
}
