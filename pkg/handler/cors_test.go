package handler_test

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/resumed/resumed/pkg/handler"
)

func TestCORS(t *testing.T) {
	SubTest(t, "Preflight", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{})

		(&httpTest{
			Method: "OPTIONS",
			URL:    "",
			ReqHeader: map[string]string{
				"Origin": "tus.io",
			},
			Code: http.StatusOK,
			ResHeader: map[string]string{
				"Access-Control-Allow-Origin":  "tus.io",
				"Access-Control-Allow-Methods": handler.DefaultCorsConfig.AllowMethods,
				"Access-Control-Allow-Headers": handler.DefaultCorsConfig.AllowHeaders,
				"Access-Control-Max-Age":       handler.DefaultCorsConfig.MaxAge,
				"Vary":                         "Origin",
			},
		}).Run(h, t)
	})

	SubTest(t, "ActualRequest", func(t *testing.T, env *testEnv) {
		env.seedUpload(t, seedRecord("yes", 11, 5), "hello")

		h := env.handler(t, handler.Config{})

		(&httpTest{
			Method: "HEAD",
			URL:    "yes",
			ReqHeader: map[string]string{
				"Tus-Resumable": "1.0.0",
				"Origin":        "tus.io",
			},
			Code: http.StatusOK,
			ResHeader: map[string]string{
				"Access-Control-Allow-Origin":   "tus.io",
				"Access-Control-Expose-Headers": handler.DefaultCorsConfig.ExposeHeaders,
			},
		}).Run(h, t)
	})

	SubTest(t, "ForbiddenOrigin", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			Cors: &handler.CorsConfig{
				AllowOrigin: regexp.MustCompile(`^https://tus\.io$`),
			},
		})

		(&httpTest{
			Method: "OPTIONS",
			URL:    "",
			ReqHeader: map[string]string{
				"Origin": "https://evil.example.com",
			},
			Code: http.StatusForbidden,
			ResHeader: map[string]string{
				"Access-Control-Allow-Origin": "",
			},
		}).Run(h, t)
	})

	SubTest(t, "AllowCredentials", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			Cors: &handler.CorsConfig{
				AllowOrigin:      regexp.MustCompile(".*"),
				AllowCredentials: true,
				AllowMethods:     "POST, PATCH",
				AllowHeaders:     "Upload-Offset",
				MaxAge:           "3600",
			},
		})

		(&httpTest{
			Method: "OPTIONS",
			URL:    "",
			ReqHeader: map[string]string{
				"Origin": "https://tus.io",
			},
			Code: http.StatusOK,
			ResHeader: map[string]string{
				"Access-Control-Allow-Origin":      "https://tus.io",
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Allow-Methods":     "POST, PATCH",
				"Access-Control-Allow-Headers":     "Upload-Offset",
				"Access-Control-Max-Age":           "3600",
			},
		}).Run(h, t)
	})

	SubTest(t, "Disabled", func(t *testing.T, env *testEnv) {
		h := env.handler(t, handler.Config{
			Cors: &handler.CorsConfig{
				Disable: true,
			},
		})

		(&httpTest{
			Method: "OPTIONS",
			URL:    "",
			ReqHeader: map[string]string{
				"Origin": "tus.io",
			},
			Code: http.StatusOK,
			ResHeader: map[string]string{
				"Access-Control-Allow-Origin":  "",
				"Access-Control-Allow-Methods": "",
			},
		}).Run(h, t)
	})
}
