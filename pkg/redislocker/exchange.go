package redislocker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/resumed/resumed/pkg/manager"
)

var (
	// DefaultRequestChannelTemplate is the Redis channel pattern on which
	// release requests are sent. The %s is replaced with the upload id.
	DefaultRequestChannelTemplate = "resumed_lock_release_request_%s"

	// DefaultReleaseChannelTemplate is the Redis channel pattern on which
	// lock releases are announced. The %s is replaced with the upload id.
	DefaultReleaseChannelTemplate = "resumed_lock_released_%s"
)

// RedisLockExchange implements LockExchange over Redis pub/sub channels.
type RedisLockExchange struct {
	Client redis.UniversalClient

	// RequestChannelTemplate overrides DefaultRequestChannelTemplate when
	// non-empty.
	RequestChannelTemplate string

	// ReleaseChannelTemplate overrides DefaultReleaseChannelTemplate when
	// non-empty.
	ReleaseChannelTemplate string
}

func (e *RedisLockExchange) requestChannel(id string) string {
	template := e.RequestChannelTemplate
	if template == "" {
		template = DefaultRequestChannelTemplate
	}
	return fmt.Sprintf(template, id)
}

func (e *RedisLockExchange) releaseChannel(id string) string {
	template := e.ReleaseChannelTemplate
	if template == "" {
		template = DefaultReleaseChannelTemplate
	}
	return fmt.Sprintf(template, id)
}

func (e *RedisLockExchange) Listen(ctx context.Context, id string, callback func()) {
	psub := e.Client.PSubscribe(ctx, e.requestChannel(id))
	defer psub.Close()

	select {
	case <-psub.Channel():
		callback()
	case <-ctx.Done():
	}
}

func (e *RedisLockExchange) Request(ctx context.Context, id string) error {
	// Subscribe before publishing the request, so the release notification
	// cannot slip past between the two.
	psub := e.Client.PSubscribe(ctx, e.releaseChannel(id))
	defer psub.Close()

	if res := e.Client.Publish(ctx, e.requestChannel(id), id); res.Err() != nil {
		return res.Err()
	}

	select {
	case <-psub.Channel():
		return nil
	case <-ctx.Done():
		return manager.ErrLockTimeout
	}
}

func (e *RedisLockExchange) Release(ctx context.Context, id string) error {
	return e.Client.Publish(ctx, e.releaseChannel(id), id).Err()
}
