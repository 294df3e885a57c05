// Package registry defines the upload metadata store.
//
// The registry is the single source of truth for an upload's offset. Byte
// storage backends must never be queried to derive the offset; they only
// serve as a secondary consistency check. This avoids split-brain between
// two components disagreeing about progress.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no upload exists for the given id.
	ErrNotFound = errors.New("registry: upload not found")

	// ErrAlreadyExists is returned when creating an upload whose id is
	// already taken.
	ErrAlreadyExists = errors.New("registry: upload already exists")

	// ErrOffsetRegression is returned when AdvanceOffset would move the
	// offset backwards. Offsets are monotonically non-decreasing.
	ErrOffsetRegression = errors.New("registry: new offset is smaller than current offset")

	// ErrOffsetBeyondLength is returned when AdvanceOffset would move the
	// offset past the upload's declared length.
	ErrOffsetBeyondLength = errors.New("registry: new offset exceeds upload length")

	// ErrLengthAlreadyDeclared is returned when DeclareLength is called for
	// an upload whose length is already known. The length is immutable once
	// set.
	ErrLengthAlreadyDeclared = errors.New("registry: upload length is already declared")
)

// MetaData is the opaque key/value mapping supplied by the client at upload
// creation. It is stored verbatim and never interpreted.
type MetaData map[string]string

// Upload is the metadata record for one upload resource.
type Upload struct {
	// ID uniquely identifies the upload. It is generated at creation and
	// immutable afterwards.
	ID string `json:"id"`
	// Size is the declared total length in bytes. Only meaningful when
	// SizeIsDeferred is false.
	Size int64 `json:"size"`
	// SizeIsDeferred indicates that the total length has not been declared
	// yet and will be supplied by a later append.
	SizeIsDeferred bool `json:"size_is_deferred"`
	// Offset is the number of bytes received and durably stored so far.
	Offset int64 `json:"offset"`
	// MetaData contains the client-supplied metadata.
	MetaData MetaData `json:"meta_data,omitempty"`
	// IsPartial indicates that this upload is a fragment intended for later
	// concatenation.
	IsPartial bool `json:"is_partial"`
	// IsFinal indicates that this upload is the result of concatenating
	// partial uploads.
	IsFinal bool `json:"is_final"`
	// PartialUploads lists the parent ids of a final upload in
	// concatenation order.
	PartialUploads []string `json:"partial_uploads,omitempty"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is the time after which the upload may be swept. The zero
	// value means the upload never expires.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsComplete reports whether all declared bytes have been received.
func (u Upload) IsComplete() bool {
	return !u.SizeIsDeferred && u.Offset == u.Size
}

// IsExpired reports whether the upload's expiry time has passed.
func (u Upload) IsExpired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && u.ExpiresAt.Before(now)
}

// Registry is implemented by every upload metadata store.
//
// AdvanceOffset and DeclareLength must be atomic with respect to concurrent
// calls for the same id. Note that the state machine additionally serializes
// all mutations per upload id through a locker, so the registry only has to
// protect its own internal structures.
type Registry interface {
	// Create stores a new upload record. The record must carry an id.
	Create(ctx context.Context, upload Upload) error

	// Get returns the upload record for the id or ErrNotFound.
	Get(ctx context.Context, id string) (Upload, error)

	// AdvanceOffset moves the upload's offset forward. It fails with
	// ErrOffsetRegression if newOffset is smaller than the current offset
	// and with ErrOffsetBeyondLength if it exceeds a declared length.
	AdvanceOffset(ctx context.Context, id string, newOffset int64) error

	// DeclareLength fixes the total length of a deferred-length upload.
	// The length becomes immutable once set.
	DeclareLength(ctx context.Context, id string, length int64) error

	// Delete removes the upload record. Deleting an unknown id returns
	// ErrNotFound so callers can distinguish, but termination treats that
	// as success.
	Delete(ctx context.Context, id string) error

	// Expired returns the ids of all uploads whose expiry time lies before
	// now.
	Expired(ctx context.Context, now time.Time) ([]string, error)
}
