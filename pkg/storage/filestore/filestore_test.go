package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resumed/resumed/pkg/storage"
)

// Test interface implementation of FileStore
var _ storage.Backend = FileStore{}

func TestFilestore(t *testing.T) {
	a := assert.New(t)

	store := New(t.TempDir())
	ctx := context.Background()

	a.NoError(store.Create(ctx, "upload1"))

	// A fresh object is empty
	length, err := store.Length(ctx, "upload1")
	a.NoError(err)
	a.EqualValues(0, length)

	// Write data in two appends
	n, err := store.Write(ctx, "upload1", 0, strings.NewReader("hello "))
	a.NoError(err)
	a.EqualValues(6, n)

	n, err = store.Write(ctx, "upload1", 6, strings.NewReader("world"))
	a.NoError(err)
	a.EqualValues(5, n)

	length, err = store.Length(ctx, "upload1")
	a.NoError(err)
	a.EqualValues(11, length)

	// Read the content back
	reader, err := store.Reader(ctx, "upload1")
	a.NoError(err)
	content, err := io.ReadAll(reader)
	a.NoError(err)
	a.Equal("hello world", string(content))
	a.NoError(reader.Close())

	// Delete the object
	a.NoError(store.Delete(ctx, "upload1"))
	_, err = store.Length(ctx, "upload1")
	a.ErrorIs(err, storage.ErrNotExist)
}

func TestFilestoreOffsetCheck(t *testing.T) {
	a := assert.New(t)

	store := New(t.TempDir())
	ctx := context.Background()

	a.NoError(store.Create(ctx, "upload1"))

	n, err := store.Write(ctx, "upload1", 0, strings.NewReader("hello"))
	a.NoError(err)
	a.EqualValues(5, n)

	// A write at an offset that does not match the end of the file is
	// rejected without modifying it, whether it points backwards or leaves
	// a gap.
	_, err = store.Write(ctx, "upload1", 3, strings.NewReader("xxx"))
	a.ErrorIs(err, storage.ErrInvalidWriteOffset)

	_, err = store.Write(ctx, "upload1", 10, strings.NewReader("xxx"))
	a.ErrorIs(err, storage.ErrInvalidWriteOffset)

	length, err := store.Length(ctx, "upload1")
	a.NoError(err)
	a.EqualValues(5, length)
}

func TestFilestoreNotExist(t *testing.T) {
	a := assert.New(t)

	store := New(t.TempDir())
	ctx := context.Background()

	_, err := store.Write(ctx, "unknown", 0, strings.NewReader("hello"))
	a.ErrorIs(err, storage.ErrNotExist)

	_, err = store.Length(ctx, "unknown")
	a.ErrorIs(err, storage.ErrNotExist)

	_, err = store.Reader(ctx, "unknown")
	a.ErrorIs(err, storage.ErrNotExist)

	// Deleting an unknown object is not an error, so interrupted
	// terminations can be retried.
	a.NoError(store.Delete(ctx, "unknown"))
}

func TestFilestoreCreateDirectoryMissing(t *testing.T) {
	a := assert.New(t)

	store := New(filepath.Join(t.TempDir(), "does-not-exist"))

	err := store.Create(context.Background(), "upload1")
	a.Error(err)
	a.Contains(err.Error(), "upload directory does not exist")
}

func TestFilestoreFilePermissions(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	a.NoError(store.Create(ctx, "upload1"))

	stat, err := os.Stat(filepath.Join(dir, "upload1"))
	a.NoError(err)
	a.False(stat.IsDir())
}
