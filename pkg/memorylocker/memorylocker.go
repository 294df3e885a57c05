// Package memorylocker provides an in-memory locking mechanism.
//
// MemoryLocker persists locks in process memory, which is sufficient as long
// as a single server process owns the registry and storage backend. Locks
// only exist as long as this object is kept in reference and are erased if
// the program exits.
package memorylocker

import (
	"context"
	"sync"

	"github.com/resumed/resumed/pkg/manager"
)

// MemoryLocker maintains one lock entry per upload id, so different upload
// ids never contend with each other.
type MemoryLocker struct {
	locks map[string]lockEntry
	mutex sync.RWMutex
}

type lockEntry struct {
	lockReleased   chan struct{}
	requestRelease func()
}

// New creates a new in-memory locker.
func New() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]lockEntry),
	}
}

func (locker *MemoryLocker) NewLock(id string) (manager.Lock, error) {
	return memoryLock{locker, id}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	id     string
}

// Lock tries to obtain the exclusive lock. If another holder has it, the
// holder is asked to release it and we wait until it does or the context
// runs out.
func (lock memoryLock) Lock(ctx context.Context, requestRelease func()) error {
	lock.locker.mutex.RLock()
	entry, ok := lock.locker.locks[lock.id]
	lock.locker.mutex.RUnlock()

requestRelease:
	if ok {
		entry.requestRelease()
		select {
		case <-ctx.Done():
			return manager.ErrLockTimeout
		case <-entry.lockReleased:
		}
	}

	lock.locker.mutex.Lock()
	// Check that no other waiter grabbed the lock in the meantime.
	entry, ok = lock.locker.locks[lock.id]
	if ok {
		lock.locker.mutex.Unlock()
		goto requestRelease
	}

	entry = lockEntry{
		lockReleased:   make(chan struct{}),
		requestRelease: requestRelease,
	}

	lock.locker.locks[lock.id] = entry
	lock.locker.mutex.Unlock()

	return nil
}

// Unlock releases the lock. If no such lock exists, no error is returned.
func (lock memoryLock) Unlock() error {
	lock.locker.mutex.Lock()

	lockReleased := lock.locker.locks[lock.id].lockReleased

	// Delete the lock entry entirely
	delete(lock.locker.locks, lock.id)

	lock.locker.mutex.Unlock()

	if lockReleased != nil {
		close(lockReleased)
	}

	return nil
}
