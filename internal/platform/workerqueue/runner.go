package workerqueue

import (
	"context"
	"math/rand"
	"time"
)

// Handler runs one pass of a worker's poll loop and reports how many items
// it processed, for logging.
type Handler func(ctx context.Context) (processed int, err error)

// Runner ticks Handler on Interval, with a small jitter so that several
// worker processes polling the same table don't all wake up in lockstep.
// It stops cleanly when ctx is cancelled, letting the in-flight handler
// call finish first.
type Runner struct {
	Name     string
	Interval time.Duration
	Handler  Handler
	OnResult func(processed int, err error, took time.Duration)
}

// Run blocks until ctx is cancelled, invoking Handler on each tick.
func (r *Runner) Run(ctx context.Context) {
	r.runOnce(ctx)
	for {
		wait := jitter(r.Interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	start := time.Now()
	processed, err := r.Handler(ctx)
	if r.OnResult != nil {
		r.OnResult(processed, err, time.Since(start))
	}
}

// jitter spreads ticks over [0.85*d, 1.15*d] so concurrent runners of the
// same stage don't contend on the same claim window in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := float64(d) * 0.15
	delta := (rand.Float64()*2 - 1) * spread
	return d + time.Duration(delta)
}
