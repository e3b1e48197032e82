package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	orchestration "github.com/lingting/rehab-core/core"
)

// supervise reruns run after recoverable recognition failures with
// exponential backoff. Any other error, or ctx ending, stops it.
func supervise(ctx context.Context, name string, initialDelay, maxDelay time.Duration, run func(context.Context) error) error {
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}

	delay := initialDelay
	for {
		started := time.Now()
		err := run(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		var sessionErr *orchestration.SessionError
		if !errors.As(err, &sessionErr) {
			return err
		}

		// A run that lasted a while was healthy, start backing off afresh.
		if time.Since(started) > maxDelay {
			delay = initialDelay
		}
		slog.Warn("recognition ended, restarting", "mode", name, "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxDelay)
	}
}
