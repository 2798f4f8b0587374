package controller

import (
	"context"
	"errors"
	"time"
)

// Watch runs a background cycle now and on every interval tick, and a cycle
// in the requested mode for each trigger. Cycles run on the calling
// goroutine, one at a time. Persistence errors are logged and watching
// continues. Watch returns ctx.Err() when ctx is done.
//
// Parameters:
//   - ctx: Stops watching
//   - interval: Background refresh period; <= 0 disables the timer
//   - triggers: Externally requested cycles (API, MQTT); may be nil
func (c *Controller) Watch(ctx context.Context, interval time.Duration, triggers <-chan Mode) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.deps.Logger.Info("watching device", "interval", interval)
	c.runQuietly(ctx, ModeBackground)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			c.runQuietly(ctx, ModeBackground)
		case mode, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			c.runQuietly(ctx, mode)
		}
	}
}

// runQuietly runs a cycle and drops its error; RunCycle already logged it.
func (c *Controller) runQuietly(ctx context.Context, mode Mode) {
	if _, err := c.RunCycle(ctx, mode); err != nil && !errors.Is(err, context.Canceled) {
		c.deps.Logger.Debug("watch continues after failed cycle")
	}
}

// Trigger is a non-blocking enqueue helper for trigger channels.
// It reports false when the channel is full.
func Trigger(triggers chan<- Mode, mode Mode) bool {
	select {
	case triggers <- mode:
		return true
	default:
		return false
	}
}
