// Package timeutil holds cancellable waits driven by an injectable clock.
package timeutil

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sleep blocks for d on the given clock. It returns false if ctx was
// cancelled first.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
