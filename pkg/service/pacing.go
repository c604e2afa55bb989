package service

import (
	"context"
	"time"
)

// Pacing holds the pauses between the visible steps of a run. A zero
// duration skips the pause.
type Pacing struct {
	Request      time.Duration // before the request message goes out
	Notice       time.Duration // after the request is reported as sent
	Processing   time.Duration // after the processing notice
	Confirmation time.Duration // after the confirmation is reported
	Between      time.Duration // before moving to the next participant
}

// DefaultPacing mirrors the cadence of the demo page.
func DefaultPacing() Pacing {
	return Pacing{
		Request:      1000 * time.Millisecond,
		Notice:       500 * time.Millisecond,
		Processing:   1000 * time.Millisecond,
		Confirmation: 500 * time.Millisecond,
		Between:      500 * time.Millisecond,
	}
}

// pause suspends the run for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
