package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/resumed/resumed/pkg/handler"
	"github.com/resumed/resumed/pkg/manager"
	"github.com/resumed/resumed/pkg/memorylocker"
	"github.com/resumed/resumed/pkg/registry"
	"github.com/resumed/resumed/pkg/registry/memory"
	"github.com/resumed/resumed/pkg/storage/memstore"
)

// testEnv wires a handler to a real in-memory registry and backend, so
// tests can seed and inspect state below the HTTP surface.
type testEnv struct {
	registry *memory.Registry
	backend  *memstore.MemStore

	// managerConfig may be adjusted before the first call to handler.
	managerConfig manager.Config
}

func SubTest(t *testing.T, name string, runTest func(*testing.T, *testEnv)) {
	t.Run(name, func(subT *testing.T) {
		env := &testEnv{
			registry: memory.New(),
			backend:  memstore.New(),
		}

		runTest(subT, env)
	})
}

// handler builds a routed handler on top of the environment's stores.
func (env *testEnv) handler(t *testing.T, config handler.Config) *handler.Handler {
	t.Helper()

	managerConfig := env.managerConfig
	managerConfig.Registry = env.registry
	managerConfig.Backend = env.backend
	if managerConfig.Locker == nil {
		managerConfig.Locker = memorylocker.New()
	}

	m, err := manager.New(managerConfig)
	if err != nil {
		t.Fatal(err)
	}

	config.Manager = m

	h, err := handler.NewHandler(config)
	if err != nil {
		t.Fatal(err)
	}
	return h
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

// seedRecord is a shorthand for the common case of a plain upload record.
func seedRecord(id string, size, offset int64) registry.Upload {
	return registry.Upload{
		ID:     id,
		Size:   size,
		Offset: offset,
	}
}

func (env *testEnv) getUpload(t *testing.T, id string) registry.Upload {
	t.Helper()

	upload, err := env.registry.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return upload
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

type httpTest struct {
	Name string

	Method string
	URL    string

	ReqBody   io.Reader
	ReqHeader map[string]string

	Code      int
	ResBody   string
	ResHeader map[string]string
}

func (test *httpTest) Run(handler http.Handler, t *testing.T) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(test.Method, test.URL, test.ReqBody)
	req.RequestURI = test.URL

	// Add headers
	for key, value := range test.ReqHeader {
		req.Header.Set(key, value)
	}

	req.Host = "tus.io"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != test.Code {
		t.Errorf("Expected %v %s as status code (got %v %s)", test.Code, http.StatusText(test.Code), w.Code, http.StatusText(w.Code))
	}

	for key, value := range test.ResHeader {
		header := w.Header().Get(key)

		if value != header {
			t.Errorf("Expected '%s' as '%s' (got '%s')", value, key, header)
		}
	}

	if test.ResBody != "" && w.Body.String() != test.ResBody {
		t.Errorf("Expected '%s' as body (got '%s'", test.ResBody, w.Body.String())
	}

	return w
}
