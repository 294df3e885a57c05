// Package handler implements the HTTP surface of the tus resumable upload
// protocol. It parses the protocol headers, dispatches to the upload state
// machine in pkg/manager and formats the responses. This layer performs no
// business logic beyond translation and owns no upload state.
package handler

import (
	"net/http"
	"strings"
)

// Handler is a ready to use handler with routing.
type Handler struct {
	*UnroutedHandler
	http.Handler
}

// NewHandler creates a routed tus protocol handler. This is the simplest way
// to use this package, but may not be as configurable as you require. If you
// are integrating this into an existing app, you may like to use
// NewUnroutedHandler instead, which allows the handlers to be combined into
// your existing router (aka mux) directly.
func NewHandler(config Config) (*Handler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	handler, err := NewUnroutedHandler(config)
	if err != nil {
		return nil, err
	}

	routedHandler := &Handler{
		UnroutedHandler: handler,
	}

	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		path := strings.Trim(r.URL.Path, "/")

		if path == "" {
			// Root endpoint for upload creation
			if method == "POST" {
				handler.PostFile(w, r)
			} else {
				allowMethodNotAllowed(w, "POST")
			}
			return
		}

		// URL points to an upload resource
		switch method {
		case "HEAD":
			handler.HeadFile(w, r)
		case "PATCH":
			handler.PatchFile(w, r)
		case "GET":
			if config.DisableDownload {
				allowMethodNotAllowed(w, "HEAD, PATCH, DELETE")
				return
			}
			handler.GetFile(w, r)
		case "DELETE":
			if config.DisableTermination {
				allowMethodNotAllowed(w, "GET, HEAD, PATCH")
				return
			}
			handler.DelFile(w, r)
		default:
			allowMethodNotAllowed(w, "GET, HEAD, PATCH, DELETE")
		}
	})

	routedHandler.Handler = handler.Middleware(mux)

	return routedHandler, nil
}

func allowMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Add("Allow", allowed)
	w.WriteHeader(http.StatusMethodNotAllowed)
	w.Write([]byte(`method not allowed`))
}
