package maturity

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Goodisoft/vestearning/pkg/logger"
)

// SweepLock serializes sweeps across engine instances. Acquire returns
// whether the lock was obtained and a release func valid when it was.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, func(), error)
}

// RedisLock implements SweepLock with a Redis SET NX PX key. The TTL
// bounds how long a crashed holder can block other instances.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisLock creates a sweep lock on the given client.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration, log *logger.Logger) *RedisLock {
	if key == "" {
		key = "vestearning:maturity:sweep"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logger.NewDefault("sweep-lock")
	}
	return &RedisLock{client: client, key: key, ttl: ttl, log: log}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, func(), error) {
	ok, err := l.client.SetNX(ctx, l.key, "locked", l.ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	release := func() {
		if err := l.client.Del(context.Background(), l.key).Err(); err != nil {
			l.log.WithError(err).Warn("release sweep lock failed; TTL will expire it")
		}
	}
	return true, release, nil
}
