package handler_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/resumed/resumed/pkg/handler"
)

func TestPost(t *testing.T) {
	SubTest(t, "Create", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable":   "1.0.0",
				"Upload-Length":   "300",
				"Upload-Metadata": "filename bXkgZmlsZS50eHQ=,empty ",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		location := res.Header().Get("Location")
		if !strings.HasPrefix(location, "http://tus.io/files/") {
			t.Errorf("Unexpected location header: %s", location)
		}

		id := strings.TrimPrefix(location, "http://tus.io/files/")
		upload := env.getUpload(t, id)
		if upload.Size != 300 {
			t.Errorf("Expected size 300, got %d", upload.Size)
		}
		if upload.Offset != 0 {
			t.Errorf("Expected offset 0, got %d", upload.Offset)
		}
		if upload.MetaData["filename"] != "my file.txt" {
			t.Errorf("Unexpected metadata: %v", upload.MetaData)
		}
		if upload.MetaData["empty"] != "" {
			t.Errorf("Unexpected metadata: %v", upload.MetaData)
		}
	})

	SubTest(t, "CreateEmptyUpload", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "0",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")
		upload := env.getUpload(t, id)
		if !upload.IsComplete() {
			t.Errorf("Expected a zero sized upload to be complete")
		}
	})

	SubTest(t, "CreateExceedingMaxSize", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			MaxSize:  400,
			BasePath: "/files/",
		})

		(&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "500",
			},
			Code: http.StatusRequestEntityTooLarge,
		}).Run(h, t)
	})

	SubTest(t, "InvalidUploadLength", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{})

		for _, length := range []string{"", "-10", "not-a-number"} {
			(&httpTest{
				Method: "POST",
				ReqHeader: map[string]string{
					"Tus-Resumable": "1.0.0",
					"Upload-Length": length,
				},
				Code: http.StatusBadRequest,
			}).Run(h, t)
		}
	})

	SubTest(t, "UploadLengthAndDeferLength", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{})

		(&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable":       "1.0.0",
				"Upload-Length":       "10",
				"Upload-Defer-Length": "1",
			},
			Code: http.StatusBadRequest,
		}).Run(h, t)
	})

	SubTest(t, "InvalidDeferLength", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{})

		(&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable":       "1.0.0",
				"Upload-Defer-Length": "bad",
			},
			Code: http.StatusBadRequest,
		}).Run(h, t)
	})

	SubTest(t, "CreateWithDeferredLength", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable":       "1.0.0",
				"Upload-Defer-Length": "1",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")
		upload := env.getUpload(t, id)
		if !upload.SizeIsDeferred {
			t.Errorf("Expected a deferred length upload")
		}
	})

	SubTest(t, "CreateWithUpload", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method:  "POST",
			ReqBody: strings.NewReader("hello"),
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "11",
				"Content-Type":  "application/offset+octet-stream",
			},
			Code: http.StatusCreated,
			ResHeader: map[string]string{
				"Upload-Offset": "5",
			},
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")
		if content := env.readBack(t, id); content != "hello" {
			t.Errorf("Unexpected content: %q", content)
		}
	})

	SubTest(t, "CreateWithUploadCompleting", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method:  "POST",
			ReqBody: strings.NewReader("hello"),
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "5",
				"Content-Type":  "application/offset+octet-stream",
			},
			Code: http.StatusCreated,
			ResHeader: map[string]string{
				"Upload-Offset": "5",
			},
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")
		if !env.getUpload(t, id).IsComplete() {
			t.Errorf("Expected the upload to be complete")
		}
	})

	SubTest(t, "CreateWithUnknownContentType", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		// A foreign content type is ignored and the body not consumed, as
		// some HTTP clients enforce a default value for this header.
		res := (&httpTest{
			Method:  "POST",
			ReqBody: strings.NewReader("this is not a chunk"),
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "300",
				"Content-Type":  "application/false",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")
		if upload := env.getUpload(t, id); upload.Offset != 0 {
			t.Errorf("Expected offset 0, got %d", upload.Offset)
		}
	})

	SubTest(t, "CreateWithExpiry", func(t *testing.T, env *testEnv) {
		env.managerConfig.UploadTTL = time.Hour

		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "10",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		if res.Header().Get("Upload-Expires") == "" {
			t.Errorf("Expected Upload-Expires header")
		}
	})

	SubTest(t, "RespectForwardedHeaders", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath:                "/files/",
			RespectForwardedHeaders: true,
		})

		res := (&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable":     "1.0.0",
				"Upload-Length":     "300",
				"X-Forwarded-Host":  "foo.com",
				"X-Forwarded-Proto": "https",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		if location := res.Header().Get("Location"); !strings.HasPrefix(location, "https://foo.com/files/") {
			t.Errorf("Unexpected location header: %s", location)
		}
	})

	SubTest(t, "AbsoluteBasePath", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "https://uploads.example.com/files/",
		})

		res := (&httpTest{
			Method: "POST",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "300",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		if location := res.Header().Get("Location"); !strings.HasPrefix(location, "https://uploads.example.com/files/") {
			t.Errorf("Unexpected location header: %s", location)
		}
	})

	SubTest(t, "MethodOverride", func(t *testing.T, env *testEnv) {
		env.seedUpload(t, seedRecord("yes", 5, 5), "hello")

		h := env.handler(t, handler.Config{})

		// POST with an override header behaves like the overridden method.
		(&httpTest{
			Method: "POST",
			URL:    "yes",
			ReqHeader: map[string]string{
				"Tus-Resumable":          "1.0.0",
				"X-HTTP-Method-Override": "DELETE",
			},
			Code: http.StatusNoContent,
		}).Run(h, t)
	})
}
