package preview

import (
	"context"
	"time"
)

// WaitFor polls cond until it holds, the timeout lapses, or ctx is
// canceled. It reports success/timeout as a bool: bounded waits on host
// state transitions are expected to fail sometimes, which is not an
// exceptional path.
func WaitFor(ctx context.Context, timeout, interval time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case <-tick.C:
			if cond() {
				return true
			}
		}
	}
}
