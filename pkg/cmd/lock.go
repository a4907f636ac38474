package cmd

import (
	"github.com/calvere/docflow/pkg/lock"
)

// NewTickLock returns a Redis-backed lock when a Redis URL is configured,
// otherwise the in-process lock suitable for single-instance deployments.
func NewTickLock(redisURL string) (lock.TickLock, error) {
	if redisURL == "" {
		return lock.NewLocalLock(), nil
	}

	return lock.NewRedisLock(redisURL)
}
