package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically deletes rate-limit records whose last activity is
// older than the retention window. It only ever targets records outside
// their active window, so it is idempotent and safe to run alongside live
// traffic.
type Janitor struct {
	sweeper   Sweeper
	interval  time.Duration
	retention time.Duration
	log       *zap.SugaredLogger
}

// NewJanitor wires a janitor over a sweepable backend.
func NewJanitor(sweeper Sweeper, interval, retention time.Duration, log *zap.SugaredLogger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Janitor{sweeper: sweeper, interval: interval, retention: retention, log: log}
}

// Start launches the background sweep loop. It sleeps first to avoid racing
// startup, and stops when ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.runOnce(ctx)
			}
		}
	}()
}

func (j *Janitor) runOnce(ctx context.Context) {
	removed, err := j.sweeper.Sweep(ctx, j.retention)
	if err != nil {
		j.log.Warnw("rate-limit janitor sweep failed", "error", err)
		return
	}
	if removed > 0 {
		j.log.Infow("rate-limit janitor swept stale records", "removed", removed)
	}
}
