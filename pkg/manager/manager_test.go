package manager_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/resumed/resumed/pkg/manager"
	"github.com/resumed/resumed/pkg/memorylocker"
	"github.com/resumed/resumed/pkg/registry"
	"github.com/resumed/resumed/pkg/registry/memory"
	"github.com/resumed/resumed/pkg/storage/memstore"
)

// testEnv bundles a manager with direct access to its registry and backend,
// so tests can seed and inspect state below the public operations.
type testEnv struct {
	manager  *manager.Manager
	registry *memory.Registry
	backend  *memstore.MemStore
}

func newTestEnv(t *testing.T, config manager.Config) *testEnv {
	t.Helper()

	env := &testEnv{
		registry: memory.New(),
		backend:  memstore.New(),
	}

	config.Registry = env.registry
	config.Backend = env.backend
	if config.Locker == nil {
		config.Locker = memorylocker.New()
	}

	m, err := manager.New(config)
	if err != nil {
		t.Fatal(err)
	}
	env.manager = m

	return env
}

// seedUpload stores a record and its bytes directly, bypassing the state
// machine.
func (env *testEnv) seedUpload(t *testing.T, upload registry.Upload, content string) {
	t.Helper()

	ctx := context.Background()
	if err := env.backend.Create(ctx, upload.ID); err != nil {
		t.Fatal(err)
	}
	if content != "" {
		if _, err := env.backend.Write(ctx, upload.ID, 0, strings.NewReader(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := env.registry.Create(ctx, upload); err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) readBack(t *testing.T, id string) string {
	t.Helper()

	src, err := env.backend.Reader(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func TestCreate(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})
	ctx := context.Background()

	upload, err := env.manager.Create(ctx, manager.CreateOptions{
		Size: 42,
		MetaData: registry.MetaData{
			"filename": "cat.jpg",
		},
	})
	a.NoError(err)
	a.NotEmpty(upload.ID)
	a.EqualValues(42, upload.Size)
	a.EqualValues(0, upload.Offset)
	a.False(upload.SizeIsDeferred)
	a.True(upload.ExpiresAt.IsZero())

	// Status reflects the stored record
	got, err := env.manager.Status(ctx, upload.ID)
	a.NoError(err)
	a.Equal(upload.ID, got.ID)
	a.EqualValues(42, got.Size)
	a.Equal("cat.jpg", got.MetaData["filename"])

	// The backend object exists and is empty
	length, err := env.backend.Length(ctx, upload.ID)
	a.NoError(err)
	a.EqualValues(0, length)
}

func TestCreateInvalidLength(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})

	_, err := env.manager.Create(context.Background(), manager.CreateOptions{Size: -1})
	a.ErrorIs(err, manager.ErrInvalidLength)
}

func TestCreateZeroSize(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})

	// A zero length upload is legal and complete from the start
	upload, err := env.manager.Create(context.Background(), manager.CreateOptions{Size: 0})
	a.NoError(err)
	a.True(upload.IsComplete())
}

func TestCreateWithTTL(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{UploadTTL: time.Hour})

	upload, err := env.manager.Create(context.Background(), manager.CreateOptions{Size: 10})
	a.NoError(err)
	a.False(upload.ExpiresAt.IsZero())
	a.True(upload.ExpiresAt.After(time.Now()))
}

func TestStatusNotFound(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})

	_, err := env.manager.Status(context.Background(), "unknown")
	a.ErrorIs(err, manager.ErrNotFound)
}

func TestStatusExpired(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})

	env.seedUpload(t, registry.Upload{
		ID:        "expired",
		Size:      10,
		ExpiresAt: time.Now().Add(-time.Hour),
	}, "")

	// An expired upload is indistinguishable from a missing one
	_, err := env.manager.Status(context.Background(), "expired")
	a.ErrorIs(err, manager.ErrNotFound)
}

func TestReader(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})

	env.seedUpload(t, registry.Upload{ID: "upload1", Size: 11, Offset: 11}, "hello world")

	upload, src, err := env.manager.Reader(context.Background(), "upload1")
	a.NoError(err)
	defer src.Close()

	a.EqualValues(11, upload.Offset)
	content, err := io.ReadAll(src)
	a.NoError(err)
	a.Equal("hello world", string(content))
}

func TestTerminate(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})
	ctx := context.Background()

	env.seedUpload(t, registry.Upload{ID: "upload1", Size: 5}, "hello")

	a.NoError(env.manager.Terminate(ctx, "upload1"))

	_, err := env.manager.Status(ctx, "upload1")
	a.ErrorIs(err, manager.ErrNotFound)

	_, err = env.backend.Length(ctx, "upload1")
	a.Error(err)

	// Termination is idempotent, so a client can retry a DELETE whose
	// response was lost.
	a.NoError(env.manager.Terminate(ctx, "upload1"))
	a.NoError(env.manager.Terminate(ctx, "never-existed"))
}

func TestSweep(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t, manager.Config{})
	ctx := context.Background()

	now := time.Now()
	env.seedUpload(t, registry.Upload{ID: "old", Size: 3, ExpiresAt: now.Add(-time.Hour)}, "abc")
	env.seedUpload(t, registry.Upload{ID: "fresh", Size: 3, ExpiresAt: now.Add(time.Hour)}, "def")
	env.seedUpload(t, registry.Upload{ID: "eternal", Size: 3}, "ghi")

	removed, err := env.manager.Sweep(ctx)
	a.NoError(err)
	a.Equal([]string{"old"}, removed)

	// Bytes and record of the expired upload are gone
	_, err = env.backend.Length(ctx, "old")
	a.Error(err)
	_, err = env.registry.Get(ctx, "old")
	a.ErrorIs(err, registry.ErrNotFound)

	// The others are untouched
	_, err = env.manager.Status(ctx, "fresh")
	a.NoError(err)
	_, err = env.manager.Status(ctx, "eternal")
	a.NoError(err)

	// A second sweep finds nothing
	removed, err = env.manager.Sweep(ctx)
	a.NoError(err)
	a.Empty(removed)
}
