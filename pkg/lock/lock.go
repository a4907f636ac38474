// Package lock guards the periodic tick so that at most one ticker instance
// runs the scheduling and escalation pass at a time.
package lock

import (
	"context"
	"time"
)

// TickLock is a best-effort mutual exclusion primitive. Acquire returns
// false without error when another holder owns the lock; the caller skips
// the tick and tries again on the next interval.
type TickLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}
