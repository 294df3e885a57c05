// Package memory provides an in-memory upload registry. Records only exist
// as long as this object is kept in reference and will be erased if the
// program exits.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/resumed/resumed/pkg/registry"
)

// Registry keeps upload records in a map guarded by a mutex.
type Registry struct {
	mutex   sync.RWMutex
	uploads map[string]registry.Upload
}

// New creates a new in-memory registry.
func New() *Registry {
	return &Registry{
		uploads: make(map[string]registry.Upload),
	}
}

func (r *Registry) Create(ctx context.Context, upload registry.Upload) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.uploads[upload.ID]; ok {
		return registry.ErrAlreadyExists
	}

	// Clone the metadata so later changes by the caller do not leak in.
	upload.MetaData = maps.Clone(upload.MetaData)
	r.uploads[upload.ID] = upload
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (registry.Upload, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	upload, ok := r.uploads[id]
	if !ok {
		return registry.Upload{}, registry.ErrNotFound
	}
	return upload, nil
}

func (r *Registry) AdvanceOffset(ctx context.Context, id string, newOffset int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	upload, ok := r.uploads[id]
	if !ok {
		return registry.ErrNotFound
	}
	if newOffset < upload.Offset {
		return registry.ErrOffsetRegression
	}
	if !upload.SizeIsDeferred && newOffset > upload.Size {
		return registry.ErrOffsetBeyondLength
	}

	upload.Offset = newOffset
	r.uploads[id] = upload
	return nil
}

func (r *Registry) DeclareLength(ctx context.Context, id string, length int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	upload, ok := r.uploads[id]
	if !ok {
		return registry.ErrNotFound
	}
	if !upload.SizeIsDeferred {
		return registry.ErrLengthAlreadyDeclared
	}

	upload.Size = length
	upload.SizeIsDeferred = false
	r.uploads[id] = upload
	return nil
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.uploads[id]; !ok {
		return registry.ErrNotFound
	}
	delete(r.uploads, id)
	return nil
}

func (r *Registry) Expired(ctx context.Context, now time.Time) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var ids []string
	for id, upload := range r.uploads {
		if upload.IsExpired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
