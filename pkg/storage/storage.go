// Package storage defines the contract for byte storage backends.
//
// A backend stores the raw bytes of an upload, addressed by the upload id.
// It knows nothing about upload metadata; offsets, lengths and expiry are
// tracked by the registry, which is the single source of truth. A backend's
// own length bookkeeping is only consulted as a secondary consistency check
// before a write is applied.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotExist is returned when no data object exists for the given id.
	ErrNotExist = errors.New("storage: object does not exist")

	// ErrStorageFull is returned when the backend runs out of capacity
	// during a write. Bytes stored before the capacity ran out stay
	// committed and are included in the returned count.
	ErrStorageFull = errors.New("storage: no space left")

	// ErrUnavailable signals a transient backend condition. A caller may
	// retry the operation, provided no bytes have been consumed from the
	// source reader yet.
	ErrUnavailable = errors.New("storage: temporarily unavailable")

	// ErrInvalidWriteOffset is returned when a write's starting offset does
	// not match the backend's current end of data. This guards against
	// overlapping or gapped writes slipping past the registry.
	ErrInvalidWriteOffset = errors.New("storage: write offset does not match end of data")
)

// Backend is implemented by every byte storage adapter. Writes must be
// durable before Write returns, so the registry offset is only ever advanced
// for bytes that actually exist.
type Backend interface {
	// Create allocates an empty data object for the given id.
	Create(ctx context.Context, id string) error

	// Write appends the content of src to the object at the given offset and
	// returns the number of bytes written. The offset must equal the
	// object's current length, otherwise ErrInvalidWriteOffset is returned
	// and nothing is written.
	Write(ctx context.Context, id string, offset int64, src io.Reader) (int64, error)

	// Length returns the number of bytes currently stored for the id.
	Length(ctx context.Context, id string) (int64, error)

	// Reader returns a reader over the stored bytes. The caller is
	// responsible for closing it.
	Reader(ctx context.Context, id string) (io.ReadCloser, error)

	// Delete removes the stored bytes. Deleting an unknown id is not an
	// error, so interrupted terminations can be retried.
	Delete(ctx context.Context, id string) error
}
