package jobview

import (
	"context"
	"errors"
	"time"

	"github.com/starexec/jobview/internal/constants"
)

// Watch refreshes the current space every interval and calls render with the
// new state, until ctx ends. render is also called once before the first tick.
// Refresh failures are part of the rendered state; only misuse stops the loop.
func (c *Controller) Watch(ctx context.Context, interval time.Duration, render func(State)) error {
	if interval < constants.MinPollInterval {
		interval = constants.MinPollInterval
	}
	return c.watch(ctx, interval, render)
}

func (c *Controller) watch(ctx context.Context, interval time.Duration, render func(State)) error {
	if render != nil {
		render(c.Snapshot())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				return err
			}
			if render != nil {
				render(c.Snapshot())
			}
		}
	}
}
