package redislocker

import (
	"context"
	"log/slog"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// LockerOption customizes a RedisLocker created by New or NewFromClient.
type LockerOption func(l *RedisLocker)

// WithLogger sets the logger used by the locker and its locks.
func WithLogger(logger *slog.Logger) LockerOption {
	return func(l *RedisLocker) {
		l.Logger = logger
	}
}

// NewFromClient creates a locker on top of an existing Redis client.
func NewFromClient(client redis.UniversalClient, options ...LockerOption) (*RedisLocker, error) {
	rs := redsync.New(goredis.NewPool(client))

	locker := &RedisLocker{
		CreateMutex: func(id string) MutexLock {
			return rs.NewMutex(id, redsync.WithExpiry(LockExpiry))
		},
		Exchange: &RedisLockExchange{
			Client: client,
		},
	}
	for _, option := range options {
		option(locker)
	}
	if locker.Logger == nil {
		locker.Logger = slog.Default()
	}

	return locker, nil
}

// New connects to the Redis instance at the given URI and creates a locker
// from it.
func New(uri string, options ...LockerOption) (*RedisLocker, error) {
	connection, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(connection)
	if res := client.Ping(context.Background()); res.Err() != nil {
		return nil, res.Err()
	}

	return NewFromClient(client, options...)
}
