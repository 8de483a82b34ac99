package broker

import (
	"context"
	"time"

	"github.com/onnwee/reddit-broker/internal/metrics"
)

// RateClock enforces the minimum spacing between quota-consuming Reddit
// calls. Spacing is measured from the completion of the previous call, not
// its start.
type RateClock struct {
	minInterval   time.Duration
	lastProcessed time.Time
	now           func() time.Time
	sleep         func(context.Context, time.Duration) error
}

// NewRateClock creates a rate clock with the given minimum interval.
func NewRateClock(minInterval time.Duration) *RateClock {
	return &RateClock{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Wait blocks until at least the minimum interval has passed since the last
// Touch. It returns early only when the context is cancelled.
func (r *RateClock) Wait(ctx context.Context) error {
	if r.lastProcessed.IsZero() {
		return nil
	}
	wait := r.minInterval - r.now().Sub(r.lastProcessed)
	if wait <= 0 {
		return nil
	}
	metrics.RateClockWaits.Observe(wait.Seconds())
	return r.sleep(ctx, wait)
}

// Touch records that a quota-consuming call just completed.
func (r *RateClock) Touch() {
	r.lastProcessed = r.now()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
