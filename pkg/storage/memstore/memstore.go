// Package memstore provides a storage backend keeping all bytes in process
// memory. It is mainly useful for tests and for deployments where uploads
// are consumed immediately and durability does not matter.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/resumed/resumed/pkg/storage"
)

// MemStore stores upload bytes in memory.
type MemStore struct {
	// Capacity limits the total number of bytes stored across all objects.
	// A value of 0 or below disables the limit.
	Capacity int64

	mutex   sync.RWMutex
	objects map[string]*bytes.Buffer
	used    int64
}

// New creates a new in-memory storage backend without a capacity limit.
func New() *MemStore {
	return &MemStore{
		objects: make(map[string]*bytes.Buffer),
	}
}

// NewWithCapacity creates a new in-memory storage backend which refuses
// writes once capacity bytes are stored in total.
func NewWithCapacity(capacity int64) *MemStore {
	store := New()
	store.Capacity = capacity
	return store
}

func (store *MemStore) Create(ctx context.Context, id string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, ok := store.objects[id]; !ok {
		store.objects[id] = new(bytes.Buffer)
	}
	return nil
}

func (store *MemStore) Write(ctx context.Context, id string, offset int64, src io.Reader) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	buffer, ok := store.objects[id]
	if !ok {
		return 0, storage.ErrNotExist
	}

	if int64(buffer.Len()) != offset {
		return 0, fmt.Errorf("%w: have %d, want %d", storage.ErrInvalidWriteOffset, buffer.Len(), offset)
	}

	var n int64
	var err error
	if store.Capacity > 0 {
		remaining := store.Capacity - store.used
		n, err = io.Copy(buffer, io.LimitReader(src, remaining))
		if err == nil && n == remaining {
			// Check whether the source had more to offer than we stored.
			var extra [1]byte
			if m, _ := src.Read(extra[:]); m > 0 {
				err = storage.ErrStorageFull
			}
		}
	} else {
		n, err = io.Copy(buffer, src)
	}

	store.used += n
	return n, err
}

func (store *MemStore) Length(ctx context.Context, id string) (int64, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	buffer, ok := store.objects[id]
	if !ok {
		return 0, storage.ErrNotExist
	}
	return int64(buffer.Len()), nil
}

func (store *MemStore) Reader(ctx context.Context, id string) (io.ReadCloser, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	buffer, ok := store.objects[id]
	if !ok {
		return nil, storage.ErrNotExist
	}

	// Copy the current content so later writes do not race with the reader.
	return io.NopCloser(bytes.NewReader(bytes.Clone(buffer.Bytes()))), nil
}

func (store *MemStore) Delete(ctx context.Context, id string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if buffer, ok := store.objects[id]; ok {
		store.used -= int64(buffer.Len())
		delete(store.objects, id)
	}
	return nil
}
