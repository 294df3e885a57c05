package handler_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/resumed/resumed/pkg/handler"
	"github.com/resumed/resumed/pkg/registry"
)

func TestConcat(t *testing.T) {
	SubTest(t, "CreatePartialUpload", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method: "POST",
			URL:    "",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "5",
				"Upload-Concat": "partial",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")
		if upload := env.getUpload(t, id); !upload.IsPartial {
			t.Errorf("Expected upload to be partial: %+v", upload)
		}

		(&httpTest{
			Method: "HEAD",
			URL:    id,
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
			},
			Code: http.StatusOK,
			ResHeader: map[string]string{
				"Upload-Concat": "partial",
			},
		}).Run(h, t)
	})

	SubTest(t, "Concatenation", func(t *testing.T, env *testEnv) {
		env.seedUpload(t, registry.Upload{
			ID:        "a",
			Size:      5,
			Offset:    5,
			IsPartial: true,
		}, "hello")
		env.seedUpload(t, registry.Upload{
			ID:        "b",
			Size:      6,
			Offset:    6,
			IsPartial: true,
		}, " world")

		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		res := (&httpTest{
			Method: "POST",
			URL:    "",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Concat": "final;http://tus.io/files/a http://tus.io/files/b",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")

		upload := env.getUpload(t, id)
		if !upload.IsFinal || upload.Size != 11 || upload.Offset != 11 {
			t.Errorf("Unexpected final upload: %+v", upload)
		}
		if len(upload.PartialUploads) != 2 || upload.PartialUploads[0] != "a" || upload.PartialUploads[1] != "b" {
			t.Errorf("Unexpected partial uploads: %v", upload.PartialUploads)
		}

		if content := env.readBack(t, id); content != "hello world" {
			t.Errorf("Unexpected content: %q", content)
		}

		(&httpTest{
			Method: "HEAD",
			URL:    id,
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
			},
			Code: http.StatusOK,
			ResHeader: map[string]string{
				"Upload-Concat": "final;http://tus.io/files/a http://tus.io/files/b",
				"Upload-Length": "11",
				"Upload-Offset": "11",
			},
		}).Run(h, t)
	})

	SubTest(t, "UnfinishedParentFail", func(t *testing.T, env *testEnv) {
		env.seedUpload(t, registry.Upload{
			ID:        "a",
			Size:      5,
			Offset:    3,
			IsPartial: true,
		}, "hel")

		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		(&httpTest{
			Method: "POST",
			URL:    "",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Concat": "final;/files/a",
			},
			Code: http.StatusBadRequest,
		}).Run(h, t)
	})

	SubTest(t, "NonPartialParentFail", func(t *testing.T, env *testEnv) {
		env.seedUpload(t, seedRecord("a", 5, 5), "hello")

		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		(&httpTest{
			Method: "POST",
			URL:    "",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Concat": "final;/files/a",
			},
			Code: http.StatusBadRequest,
		}).Run(h, t)
	})

	SubTest(t, "ExceedingMaxSizeFail", func(t *testing.T, env *testEnv) {
		env.seedUpload(t, registry.Upload{
			ID:        "a",
			Size:      5,
			Offset:    5,
			IsPartial: true,
		}, "hello")
		env.seedUpload(t, registry.Upload{
			ID:        "b",
			Size:      6,
			Offset:    6,
			IsPartial: true,
		}, " world")

		h := env.handler(t, handler.Config{
			BasePath: "/files/",
			MaxSize:  8,
		})

		// The summed size of the partial uploads busts the limit, so no
		// final upload is created and no byte is copied.
		res := (&httpTest{
			Method: "POST",
			URL:    "",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Concat": "final;/files/a /files/b",
			},
			Code: http.StatusRequestEntityTooLarge,
		}).Run(h, t)

		if location := res.Header().Get("Location"); location != "" {
			t.Errorf("Expected no Location header, got %q", location)
		}

		// The parents are untouched
		if upload := env.getUpload(t, "a"); !upload.IsPartial || upload.Offset != 5 {
			t.Errorf("Unexpected parent state: %+v", upload)
		}
		if upload := env.getUpload(t, "b"); !upload.IsPartial || upload.Offset != 6 {
			t.Errorf("Unexpected parent state: %+v", upload)
		}
	})

	SubTest(t, "InvalidConcatHeaderFail", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		for _, header := range []string{"final;", "bogus"} {
			(&httpTest{
				Method: "POST",
				URL:    "",
				ReqHeader: map[string]string{
					"Tus-Resumable": "1.0.0",
					"Upload-Length": "5",
					"Upload-Concat": header,
				},
				Code: http.StatusBadRequest,
			}).Run(h, t)
		}
	})

	SubTest(t, "FinalWithChunkFail", func(t *testing.T, env *testEnv) {
		env.seedUpload(t, registry.Upload{
			ID:        "a",
			Size:      5,
			Offset:    5,
			IsPartial: true,
		}, "hello")

		h := env.handler(t, handler.Config{
			BasePath: "/files/",
		})

		// Bytes of a final upload come from the partial uploads, so a
		// creation-with-upload request is rejected.
		(&httpTest{
			Method:  "POST",
			URL:     "",
			ReqBody: strings.NewReader("surplus"),
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Content-Type":  "application/offset+octet-stream",
				"Upload-Concat": "final;/files/a",
			},
			Code: http.StatusForbidden,
		}).Run(h, t)
	})

	SubTest(t, "ConcatenationDisabled", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			BasePath:             "/files/",
			DisableConcatenation: true,
		})

		// With the extension disabled the Upload-Concat header is ignored
		// and a regular upload is created.
		res := (&httpTest{
			Method: "POST",
			URL:    "",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Upload-Length": "5",
				"Upload-Concat": "partial",
			},
			Code: http.StatusCreated,
		}).Run(h, t)

		id := strings.TrimPrefix(res.Header().Get("Location"), "http://tus.io/files/")
		if upload := env.getUpload(t, id); upload.IsPartial {
			t.Errorf("Expected upload not to be partial: %+v", upload)
		}
	})
}
