// Package filestore provides a storage backend based on the local file
// system. Each upload is stored as a single flat file named after the upload
// id inside the configured directory. No metadata is kept here; the registry
// owns it.
//
// No cleanup is performed, so you may want to run the expiry sweeper to
// ensure your disk is not filled up with abandoned uploads.
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/resumed/resumed/pkg/storage"
)

var defaultFilePerm = os.FileMode(0664)

// FileStore stores upload bytes in a directory on the local file system.
type FileStore struct {
	// Path is a relative or absolute path to the storage directory.
	// FileStore does not check whether the path exists, use os.MkdirAll in
	// this case on your own.
	Path string
}

// New creates a new file based storage backend. The directory specified will
// be used as the only storage entry.
func New(path string) FileStore {
	return FileStore{Path: path}
}

func (store FileStore) Create(ctx context.Context, id string) error {
	file, err := os.OpenFile(store.binPath(id), os.O_CREATE|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("filestore: upload directory does not exist: %s", store.Path)
		}
		return err
	}
	return file.Close()
}

func (store FileStore) Write(ctx context.Context, id string, offset int64, src io.Reader) (int64, error) {
	file, err := os.OpenFile(store.binPath(id), os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		if os.IsNotExist(err) {
			err = storage.ErrNotExist
		}
		return 0, err
	}
	defer file.Close()

	// The registry already validated the offset, but a crashed process or a
	// second server sharing the directory may have left the file shorter or
	// longer than the registry believes. Refuse to append in that case.
	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}
	if stat.Size() != offset {
		return 0, fmt.Errorf("%w: have %d, want %d", storage.ErrInvalidWriteOffset, stat.Size(), offset)
	}

	n, err := io.Copy(file, src)
	if err != nil {
		return n, err
	}

	// Flush to disk before the registry advances the offset, so a crash
	// cannot leave the offset ahead of the stored bytes.
	return n, file.Sync()
}

func (store FileStore) Length(ctx context.Context, id string) (int64, error) {
	stat, err := os.Stat(store.binPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			err = storage.ErrNotExist
		}
		return 0, err
	}
	return stat.Size(), nil
}

func (store FileStore) Reader(ctx context.Context, id string) (io.ReadCloser, error) {
	file, err := os.Open(store.binPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			err = storage.ErrNotExist
		}
		return nil, err
	}
	return file, nil
}

func (store FileStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(store.binPath(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// binPath returns the path to the file storing the upload's bytes.
func (store FileStore) binPath(id string) string {
	return filepath.Join(store.Path, id)
}
