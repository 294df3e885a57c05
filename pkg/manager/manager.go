// Package manager implements the upload session state machine. It validates
// every operation against an upload's current state, enforces the offset,
// length and checksum invariants and coordinates the registry with the byte
// storage backend.
//
// The registry is the single source of truth for offsets. Bytes are written
// to the backend first and the registry offset is advanced afterwards
// (write-then-commit), so a crash can never leave the offset ahead of the
// durably stored bytes.
package manager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/resumed/resumed/internal/uid"
	"github.com/resumed/resumed/pkg/registry"
	"github.com/resumed/resumed/pkg/storage"
)

// Config provides a way to configure the Manager depending on your needs.
type Config struct {
	// Registry stores the upload metadata. Required.
	Registry registry.Registry
	// Backend stores the upload bytes. Required.
	Backend storage.Backend
	// Locker serializes mutations per upload id. If nil, no locking is
	// performed and the caller must serialize access itself.
	Locker Locker
	// UploadTTL is the duration after which an upload may be swept. A value
	// of 0 disables expiration.
	UploadTTL time.Duration
	// MaxChecksumChunkSize limits how many bytes of a checksummed chunk are
	// buffered for verification. Defaults to 16 MiB.
	MaxChecksumChunkSize int64
	// AcquireLockTimeout is how long an operation waits for the per-upload
	// lock. Defaults to 10 seconds.
	AcquireLockTimeout time.Duration
	// Logger is the logger to use internally. Defaults to slog.Default().
	Logger *slog.Logger

	// now is replaceable for tests.
	now func() time.Time
}

func (config *Config) validate() error {
	if config.Registry == nil {
		return errors.New("manager: Config needs a non-nil Registry")
	}
	if config.Backend == nil {
		return errors.New("manager: Config needs a non-nil Backend")
	}
	if config.MaxChecksumChunkSize <= 0 {
		config.MaxChecksumChunkSize = 16 * 1024 * 1024
	}
	if config.AcquireLockTimeout <= 0 {
		config.AcquireLockTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.now == nil {
		config.now = time.Now
	}
	return nil
}

// Manager tracks partially-uploaded byte ranges for each upload resource and
// exposes the operations the HTTP handler maps requests onto.
type Manager struct {
	registry registry.Registry
	backend  storage.Backend
	locker   Locker
	config   Config
	logger   *slog.Logger
}

// New creates a new Manager using the given configuration.
func New(config Config) (*Manager, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Manager{
		registry: config.Registry,
		backend:  config.Backend,
		locker:   config.Locker,
		config:   config,
		logger:   config.Logger,
	}, nil
}

// CreateOptions collects the client-supplied properties for a new upload.
type CreateOptions struct {
	// Size is the declared total length. Ignored when SizeIsDeferred is set.
	Size int64
	// SizeIsDeferred indicates that the length will be declared by a later
	// append.
	SizeIsDeferred bool
	// MetaData is stored verbatim and never interpreted.
	MetaData registry.MetaData
	// IsPartial marks the upload as a fragment for later concatenation.
	IsPartial bool
}

// Create allocates a new upload with offset 0 and returns its record.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (registry.Upload, error) {
	if !opts.SizeIsDeferred && opts.Size < 0 {
		return registry.Upload{}, ErrInvalidLength
	}

	now := m.config.now()
	upload := registry.Upload{
		ID:             uid.Uid(),
		Size:           opts.Size,
		SizeIsDeferred: opts.SizeIsDeferred,
		MetaData:       opts.MetaData,
		IsPartial:      opts.IsPartial,
		CreatedAt:      now,
	}
	if m.config.UploadTTL > 0 {
		upload.ExpiresAt = now.Add(m.config.UploadTTL)
	}

	if err := m.backend.Create(ctx, upload.ID); err != nil {
		return registry.Upload{}, err
	}

	if err := m.registry.Create(ctx, upload); err != nil {
		// Roll back the empty data object so the backend does not
		// accumulate orphans.
		if cleanupErr := m.backend.Delete(ctx, upload.ID); cleanupErr != nil {
			m.logger.Error("CreateRollbackError", "id", upload.ID, "error", cleanupErr.Error())
		}
		return registry.Upload{}, err
	}

	m.logger.Info("UploadCreated", "id", upload.ID, "size", upload.Size, "sizeIsDeferred", upload.SizeIsDeferred, "isPartial", upload.IsPartial)

	return upload, nil
}

// Status returns the upload's current record, for clients resuming after a
// disconnect. Expired uploads are reported as not found.
func (m *Manager) Status(ctx context.Context, id string) (registry.Upload, error) {
	lock, err := m.lockUpload(ctx, id, nil)
	if err != nil {
		return registry.Upload{}, err
	}
	defer lock.Unlock()

	return m.fetch(ctx, id)
}

// Reader returns a reader over the upload's stored bytes together with its
// current record.
func (m *Manager) Reader(ctx context.Context, id string) (registry.Upload, io.ReadCloser, error) {
	lock, err := m.lockUpload(ctx, id, nil)
	if err != nil {
		return registry.Upload{}, nil, err
	}
	defer lock.Unlock()

	upload, err := m.fetch(ctx, id)
	if err != nil {
		return registry.Upload{}, nil, err
	}

	src, err := m.backend.Reader(ctx, id)
	if err != nil {
		return registry.Upload{}, nil, err
	}

	return upload, src, nil
}

// Terminate deletes the upload and its bytes. It is idempotent: terminating
// an unknown, expired or already-deleted upload succeeds, so clients can
// retry a DELETE whose response was lost.
func (m *Manager) Terminate(ctx context.Context, id string) error {
	lock, err := m.lockUpload(ctx, id, nil)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	return m.remove(ctx, id)
}

// Sweep deletes every upload whose expiry time lies before now and returns
// the ids that were removed. It holds no hidden state; an external scheduler
// is expected to invoke it periodically.
func (m *Manager) Sweep(ctx context.Context) ([]string, error) {
	expired, err := m.registry.Expired(ctx, m.config.now())
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range expired {
		lock, err := m.lockUpload(ctx, id, nil)
		if err != nil {
			return removed, err
		}

		err = m.remove(ctx, id)
		lock.Unlock()
		if err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}

	if len(removed) > 0 {
		m.logger.Info("ExpiredUploadsSwept", "count", len(removed))
	}

	return removed, nil
}

// remove deletes the registry record and the stored bytes. Both deletions
// tolerate the entry being gone already.
func (m *Manager) remove(ctx context.Context, id string) error {
	if err := m.registry.Delete(ctx, id); err != nil && !errors.Is(err, registry.ErrNotFound) {
		return err
	}
	if err := m.backend.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotExist) {
		return err
	}

	m.logger.Info("UploadTerminated", "id", id)
	return nil
}

// fetch loads the upload record and maps missing or expired uploads to
// ErrNotFound.
func (m *Manager) fetch(ctx context.Context, id string) (registry.Upload, error) {
	upload, err := m.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			err = ErrNotFound
		}
		return registry.Upload{}, err
	}

	if upload.IsExpired(m.config.now()) {
		return registry.Upload{}, ErrNotFound
	}

	return upload, nil
}

// lockUpload creates a lock for the given upload id and attempts to acquire
// it within the configured timeout. requestRelease is invoked when another
// caller wants the lock; it may be nil.
func (m *Manager) lockUpload(ctx context.Context, id string, requestRelease func()) (Lock, error) {
	if m.locker == nil {
		return noopLock{}, nil
	}

	lock, err := m.locker.NewLock(id)
	if err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, m.config.AcquireLockTimeout)
	defer cancel()

	if requestRelease == nil {
		requestRelease = func() {}
	}

	if err := lock.Lock(lockCtx, requestRelease); err != nil {
		return nil, err
	}

	return lock, nil
}
