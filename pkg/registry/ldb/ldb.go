// Package ldb provides an upload registry backed by a local LevelDB
// database, so upload state survives process restarts. Records are stored as
// JSON values keyed by the upload id.
package ldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/resumed/resumed/pkg/registry"
)

// Registry stores upload records in a LevelDB database.
type Registry struct {
	db *leveldb.DB

	// LevelDB has no transactions for read-modify-write cycles, so updates
	// to individual records are serialized here. The per-upload locker above
	// this registry already spaces out contention per id; this mutex only
	// protects the short decode-mutate-encode section.
	mutex sync.Mutex
}

// Open opens (or creates) the database at the given path.
func Open(path string) (*Registry, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("ldb: opening database: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) Create(ctx context.Context, upload registry.Upload) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	has, err := r.db.Has([]byte(upload.ID), nil)
	if err != nil {
		return err
	}
	if has {
		return registry.ErrAlreadyExists
	}
	return r.put(upload)
}

func (r *Registry) Get(ctx context.Context, id string) (registry.Upload, error) {
	return r.get(id)
}

func (r *Registry) AdvanceOffset(ctx context.Context, id string, newOffset int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	upload, err := r.get(id)
	if err != nil {
		return err
	}
	if newOffset < upload.Offset {
		return registry.ErrOffsetRegression
	}
	if !upload.SizeIsDeferred && newOffset > upload.Size {
		return registry.ErrOffsetBeyondLength
	}

	upload.Offset = newOffset
	return r.put(upload)
}

func (r *Registry) DeclareLength(ctx context.Context, id string, length int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	upload, err := r.get(id)
	if err != nil {
		return err
	}
	if !upload.SizeIsDeferred {
		return registry.ErrLengthAlreadyDeclared
	}

	upload.Size = length
	upload.SizeIsDeferred = false
	return r.put(upload)
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	has, err := r.db.Has([]byte(id), nil)
	if err != nil {
		return err
	}
	if !has {
		return registry.ErrNotFound
	}
	return r.db.Delete([]byte(id), nil)
}

func (r *Registry) Expired(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string

	iter := r.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		var upload registry.Upload
		if err := json.Unmarshal(iter.Value(), &upload); err != nil {
			// A corrupt record must not stall the sweep of the others.
			continue
		}
		if upload.IsExpired(now) {
			ids = append(ids, string(iter.Key()))
		}
	}

	return ids, iter.Error()
}

func (r *Registry) get(id string) (registry.Upload, error) {
	value, err := r.db.Get([]byte(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			err = registry.ErrNotFound
		}
		return registry.Upload{}, err
	}

	var upload registry.Upload
	if err := json.Unmarshal(value, &upload); err != nil {
		return registry.Upload{}, fmt.Errorf("ldb: decoding record for %s: %w", id, err)
	}
	return upload, nil
}

func (r *Registry) put(upload registry.Upload) error {
	value, err := json.Marshal(upload)
	if err != nil {
		return err
	}
	return r.db.Put([]byte(upload.ID), value, nil)
}
