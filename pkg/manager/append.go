package manager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/resumed/resumed/pkg/registry"
	"github.com/resumed/resumed/pkg/storage"
)

// writeRetryAttempts is how often a transient backend failure is retried
// before the error is surfaced. Retrying is only safe while no byte of the
// chunk has been consumed yet.
const writeRetryAttempts = 3

const writeRetryDelay = 100 * time.Millisecond

// AppendRequest collects the client-supplied parameters for one chunk.
type AppendRequest struct {
	// ExpectedOffset must equal the upload's current offset exactly.
	ExpectedOffset int64
	// HasDeclaredLength indicates that DeclaredLength carries the total
	// length for a deferred-length upload.
	HasDeclaredLength bool
	DeclaredLength    int64
	// Checksum, if non-nil, is verified against the chunk before any byte
	// is committed.
	Checksum *Checksum
}

// Append validates the chunk against the upload's current state, writes it
// to the backend and advances the registry offset by the number of bytes
// durably stored. The returned record reflects the new offset.
//
// Appending zero bytes is a legal no-op that still validates the offset, so
// clients can probe whether their view of an upload is current.
func (m *Manager) Append(ctx context.Context, id string, src io.Reader, req AppendRequest) (registry.Upload, error) {
	// If another request arrives for the same upload, it asks us to release
	// the lock. We oblige by cancelling the backend write; every byte
	// written up to that point stays committed.
	writeCtx, stopWrite := context.WithCancel(ctx)
	defer stopWrite()

	lock, err := m.lockUpload(ctx, id, stopWrite)
	if err != nil {
		return registry.Upload{}, err
	}
	defer lock.Unlock()

	upload, err := m.fetch(ctx, id)
	if err != nil {
		return registry.Upload{}, err
	}

	if upload.IsFinal {
		return upload, ErrModifyFinal
	}

	// The offset check comes before any effect, so a rejected append leaves
	// the upload untouched and the client can retry with corrected
	// parameters, including a still-attached length declaration.
	if req.ExpectedOffset != upload.Offset {
		return upload, ErrOffsetMismatch
	}

	if upload.IsComplete() {
		return upload, ErrUploadComplete
	}

	if req.HasDeclaredLength {
		if !upload.SizeIsDeferred {
			return upload, ErrLengthAlreadyDeclared
		}
		if req.DeclaredLength < 0 || req.DeclaredLength < upload.Offset {
			return upload, ErrInvalidLength
		}

		if err := m.registry.DeclareLength(ctx, id, req.DeclaredLength); err != nil {
			return upload, err
		}
		// A declaration equal to the current offset completes the upload;
		// the write loop below then simply stores zero bytes.
		upload.Size = req.DeclaredLength
		upload.SizeIsDeferred = false
	}

	remaining := int64(math.MaxInt64)
	if !upload.SizeIsDeferred {
		remaining = upload.Size - upload.Offset
	}

	if req.Checksum != nil {
		src, err = m.verifyChecksum(src, *req.Checksum, remaining)
		if err != nil {
			return upload, err
		}
	} else if src != nil {
		// Never read past the declared length; surplus bytes are simply not
		// consumed and the client learns the true offset from the response.
		src = io.LimitReader(src, remaining)
	}

	m.logger.Info("ChunkWriteStart", "id", id, "offset", upload.Offset, "maxSize", remaining)

	var bytesWritten int64
	if src != nil {
		bytesWritten, err = m.write(writeCtx, id, upload.Offset, src)
	}

	if bytesWritten > 0 {
		// Commit what was durably stored, even if the write ended in an
		// error. The offset must reflect exactly the persisted bytes.
		newOffset := upload.Offset + bytesWritten
		if advErr := m.registry.AdvanceOffset(ctx, id, newOffset); advErr != nil {
			return upload, advErr
		}
		upload.Offset = newOffset
	}

	m.logger.Info("ChunkWriteComplete", "id", id, "bytesWritten", bytesWritten)

	if err != nil {
		return upload, err
	}

	if upload.IsComplete() {
		m.logger.Info("UploadFinished", "id", id, "size", upload.Size)
	}

	return upload, nil
}

// verifyChecksum buffers the chunk, verifies its digest and returns a reader
// over the verified bytes. No partial bytes are committed on a mismatch:
// all-or-nothing for the chunk.
func (m *Manager) verifyChecksum(src io.Reader, checksum Checksum, remaining int64) (io.Reader, error) {
	if _, ok := newChecksumHash(checksum.Algorithm); !ok {
		return nil, ErrChecksumAlgorithm
	}

	if src == nil {
		src = bytes.NewReader(nil)
	}

	limit := m.config.MaxChecksumChunkSize
	if remaining < limit {
		limit = remaining
	}

	// Read one byte more than allowed to detect an oversized chunk.
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		if limit == remaining {
			return nil, ErrSizeExceeded
		}
		return nil, ErrChunkTooLarge
	}

	matches, supported := checksum.verify(data)
	if !supported {
		return nil, ErrChecksumAlgorithm
	}
	if !matches {
		m.logger.Info("ChunkChecksumMismatch", "algorithm", checksum.Algorithm, "size", len(data))
		return nil, ErrChecksumMismatch
	}

	return bytes.NewReader(data), nil
}

// write sends the chunk to the backend, retrying transient failures as long
// as no byte has been consumed from src yet.
func (m *Manager) write(ctx context.Context, id string, offset int64, src io.Reader) (int64, error) {
	var n int64
	var err error

	for attempt := 0; attempt < writeRetryAttempts; attempt++ {
		n, err = m.backend.Write(ctx, id, offset, src)
		if n > 0 || !errors.Is(err, storage.ErrUnavailable) {
			return n, err
		}

		m.logger.Warn("StorageWriteRetry", "id", id, "attempt", attempt+1, "error", err.Error())

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(writeRetryDelay):
		}
	}

	return n, err
}
