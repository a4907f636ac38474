package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tickLockKey = "docflow:tick:lock"

// releaseScript deletes the lock only when this instance still owns it, so
// an expired lock taken over by another ticker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock coordinates tickers across instances with SET NX plus a TTL.
type RedisLock struct {
	client *redis.Client
	owner  string
}

func NewRedisLock(redisURL string) (*RedisLock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return &RedisLock{
		client: redis.NewClient(opts),
		owner:  uuid.New().String(),
	}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, tickLockKey, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire tick lock: %w", err)
	}

	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{tickLockKey}, l.owner).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release tick lock: %w", err)
	}

	return nil
}

func (l *RedisLock) Close() error {
	return l.client.Close()
}
