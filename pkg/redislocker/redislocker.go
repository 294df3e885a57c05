// Package redislocker provides a locking mechanism backed by Redis, for
// deployments where multiple server processes share a registry and storage
// backend. Mutual exclusion uses redsync mutexes; lock handover between
// processes is coordinated over Redis pub/sub.
package redislocker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumed/resumed/pkg/manager"
)

// LockExpiry is the expiry assigned to the underlying redsync mutex. Held
// locks are extended in the background at half this interval.
var LockExpiry = 8 * time.Second

// LockExchange coordinates lock handover between lock holders and waiters.
type LockExchange interface {
	// Listen blocks until a release request for the id arrives or the
	// context is cancelled, invoking callback in the former case.
	Listen(ctx context.Context, id string, callback func())
	// Request asks the current holder to release the lock and waits for the
	// release notification.
	Request(ctx context.Context, id string) error
	// Release notifies waiters that the lock for the id has been released.
	Release(ctx context.Context, id string) error
}

// MutexLock is the subset of redsync's mutex used by the locker.
type MutexLock interface {
	TryLockContext(context.Context) error
	ExtendContext(context.Context) (bool, error)
	UnlockContext(context.Context) (bool, error)
	Until() time.Time
}

// RedisLocker creates distributed locks for upload ids.
type RedisLocker struct {
	CreateMutex func(id string) MutexLock
	Exchange    LockExchange
	Logger      *slog.Logger
}

func (locker *RedisLocker) NewLock(id string) (manager.Lock, error) {
	return &redisLock{
		id:       id,
		mutex:    locker.CreateMutex(id),
		exchange: locker.Exchange,
		logger:   locker.Logger.With("uploadId", id),
	}, nil
}

type redisLock struct {
	id       string
	mutex    MutexLock
	ctx      context.Context
	cancel   context.CancelCauseFunc
	exchange LockExchange
	logger   *slog.Logger
}

func (l *redisLock) Lock(ctx context.Context, requestRelease func()) error {
	if err := l.requestLock(ctx); err != nil {
		return err
	}

	go l.exchange.Listen(l.ctx, l.id, requestRelease)
	go func() {
		if err := l.keepAlive(l.ctx); err != nil {
			l.logger.Error("LockKeepAliveError", "error", err.Error())
			l.cancel(err)
			if requestRelease != nil {
				requestRelease()
			}
		}
	}()

	return nil
}

func (l *redisLock) requestLock(ctx context.Context) error {
	if err := l.acquireLock(ctx); err == nil {
		return nil
	}

	// Someone else holds the mutex. Ask them to give it up, then try once
	// more.
	if err := l.exchange.Request(ctx, l.id); err != nil {
		return err
	}
	return l.acquireLock(ctx)
}

func (l *redisLock) acquireLock(ctx context.Context) error {
	if err := l.mutex.TryLockContext(ctx); err != nil {
		return errors.Join(err, manager.ErrLockTimeout)
	}

	l.ctx, l.cancel = context.WithCancelCause(context.Background())
	return nil
}

// keepAlive extends the mutex at half its expiry until the lock's context is
// cancelled by Unlock.
func (l *redisLock) keepAlive(ctx context.Context) error {
	for {
		select {
		case <-time.After(time.Until(l.mutex.Until()) / 2):
			if _, err := l.mutex.ExtendContext(ctx); err != nil {
				return fmt.Errorf("extending lock: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *redisLock) Unlock() error {
	if l.cancel != nil {
		defer l.cancel(nil)
	}

	ok, err := l.mutex.UnlockContext(l.ctx)
	if !ok {
		l.logger.Error("LockReleaseError", "error", fmt.Sprint(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if releaseErr := l.exchange.Release(ctx, l.id); releaseErr != nil {
		err = errors.Join(err, releaseErr)
	}

	return err
}
