package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/resumed/resumed/internal/uid"
	"github.com/resumed/resumed/pkg/registry"
)

// Concatenate creates a final upload from the given complete partial
// uploads, preserving their order. The bytes are physically concatenated in
// the backend, so the final upload can be read back like any other. The
// returned record is immediately complete.
//
// Parents are not locked during the copy: a complete upload rejects further
// appends, and a concurrent termination of a parent surfaces as a copy
// error here.
func (m *Manager) Concatenate(ctx context.Context, parentIDs []string, meta registry.MetaData) (registry.Upload, error) {
	if len(parentIDs) == 0 {
		return registry.Upload{}, ErrUploadNotFinished
	}

	parents := make([]registry.Upload, 0, len(parentIDs))
	var size int64
	for _, parentID := range parentIDs {
		parent, err := m.fetch(ctx, parentID)
		if err != nil {
			return registry.Upload{}, err
		}

		if parent.IsFinal {
			return registry.Upload{}, ErrFinalParent
		}
		if !parent.IsPartial {
			return registry.Upload{}, ErrNotPartialParent
		}
		if !parent.IsComplete() {
			return registry.Upload{}, ErrUploadNotFinished
		}

		parents = append(parents, parent)
		size += parent.Size
	}

	now := m.config.now()
	upload := registry.Upload{
		ID:             uid.Uid(),
		Size:           size,
		Offset:         size,
		MetaData:       meta,
		IsFinal:        true,
		PartialUploads: append([]string(nil), parentIDs...),
		CreatedAt:      now,
	}
	if m.config.UploadTTL > 0 {
		upload.ExpiresAt = now.Add(m.config.UploadTTL)
	}

	if err := m.backend.Create(ctx, upload.ID); err != nil {
		return registry.Upload{}, err
	}

	var offset int64
	for _, parent := range parents {
		n, err := m.copyParent(ctx, upload.ID, offset, parent.ID)
		if err != nil {
			m.discard(ctx, upload.ID)
			return registry.Upload{}, fmt.Errorf("concatenating %s: %w", parent.ID, err)
		}
		offset += n
	}

	// The bytes exist in full before the record becomes visible.
	if err := m.registry.Create(ctx, upload); err != nil {
		m.discard(ctx, upload.ID)
		return registry.Upload{}, err
	}

	m.logger.Info("UploadConcatenated", "id", upload.ID, "size", size, "parents", len(parents))

	return upload, nil
}

func (m *Manager) copyParent(ctx context.Context, id string, offset int64, parentID string) (int64, error) {
	src, err := m.backend.Reader(ctx, parentID)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return m.backend.Write(ctx, id, offset, src)
}

// discard removes a half-built final upload's data object, logging instead
// of failing since the original error is the one worth reporting.
func (m *Manager) discard(ctx context.Context, id string) {
	if err := m.backend.Delete(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("ConcatRollbackError", "id", id, "error", err.Error())
	}
}
