package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLock is an in-process TickLock for single-instance deployments and
// tests. The TTL still applies so a crashed tick cannot wedge the process.
type LocalLock struct {
	mu       sync.Mutex
	held     bool
	expireAt time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.held && now.Before(l.expireAt) {
		return false, nil
	}

	l.held = true
	l.expireAt = now.Add(ttl)

	return true, nil
}

func (l *LocalLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.held = false

	return nil
}
