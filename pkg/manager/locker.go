package manager

import "context"

// Locker is the interface required for lock persisting mechanisms. Common
// ways to store this information are in memory or an external service such
// as Redis.
//
// All mutating operations for one upload id are serialized through a lock
// obtained from the Locker. The lock is held only for the duration of
// validating and writing a single chunk, never across a whole multi-chunk
// client session. Different upload ids never contend with each other.
type Locker interface {
	// NewLock creates a new unlocked lock object for the given upload ID.
	NewLock(id string) (Lock, error)
}

// Lock is the interface for a lock as returned from a Locker.
type Lock interface {
	// Lock attempts to obtain an exclusive lock for the upload. If the lock
	// is already held, the holder's requestRelease function is invoked to
	// ask for the lock to be given up. If the context is cancelled before
	// the lock can be acquired, ErrLockTimeout is returned without
	// acquiring the lock.
	Lock(ctx context.Context, requestRelease func()) error
	// Unlock releases an existing lock for the upload.
	Unlock() error
}

// noopLock is used when no Locker is configured. The caller is then
// responsible for serializing access per upload id.
type noopLock struct{}

func (noopLock) Lock(ctx context.Context, requestRelease func()) error { return nil }
func (noopLock) Unlock() error                                         { return nil }
