package service

import (
	"context"
	"time"
)

const (
	// default step timeout is 30s
	DefaultStepTimeout = 30 * time.Second
)

// runStep executes fn under its own timeout. The result is read from a
// buffered channel so a step that ignores its context cannot block the run.
func runStep(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- fn(stepCtx)
	}()

	select {
	case err := <-resultCh:
		return err
	case <-stepCtx.Done():
		return stepCtx.Err()
	}
}
