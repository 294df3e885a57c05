package handler

import (
	"errors"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/resumed/resumed/pkg/manager"
)

// CorsConfig provides a way to customize the CORS behavior.
type CorsConfig struct {
	// Disable instructs the handler to ignore all CORS-related headers.
	Disable bool
	// AllowOrigin is matched against the Origin header.
	AllowOrigin *regexp.Regexp
	// AllowCredentials defines whether cookies may be included in
	// cross-origin requests.
	AllowCredentials bool
	AllowMethods     string
	AllowHeaders     string
	MaxAge           string
	ExposeHeaders    string
}

// DefaultCorsConfig is the configuration that will be used in none is
// provided.
var DefaultCorsConfig = CorsConfig{
	AllowOrigin:   regexp.MustCompile(".*"),
	AllowMethods:  "POST, HEAD, PATCH, OPTIONS, GET, DELETE",
	AllowHeaders:  "Authorization, Origin, X-Requested-With, X-Request-ID, X-HTTP-Method-Override, Content-Type, Upload-Length, Upload-Offset, Tus-Resumable, Upload-Metadata, Upload-Defer-Length, Upload-Concat, Upload-Checksum",
	MaxAge:        "86400",
	ExposeHeaders: "Upload-Offset, Location, Upload-Length, Tus-Version, Tus-Resumable, Tus-Max-Size, Tus-Extension, Tus-Checksum-Algorithm, Upload-Metadata, Upload-Defer-Length, Upload-Concat, Upload-Expires",
}

// Config provides a way to configure the Handler depending on your needs.
type Config struct {
	// Manager performs the actual protocol operations against the registry
	// and the storage backend. Required.
	Manager *manager.Manager
	// MaxSize defines how many bytes may be stored in one single upload. If
	// its value is 0 or smaller no limit will be enforced.
	MaxSize int64
	// BasePath defines the URL path used for handling uploads, e.g.
	// "/files/". If no trailing slash is presented it will be added. You may
	// specify an absolute URL containing a scheme, e.g. "http://tus.io".
	BasePath string
	isAbs    bool
	// DisableDownload indicates whether the server will refuse downloads of
	// the uploaded file, by not mounting the GET handler.
	DisableDownload bool
	// DisableTermination indicates whether the server will refuse
	// termination requests of the uploaded file, by not mounting the DELETE
	// handler.
	DisableTermination bool
	// DisableConcatenation indicates whether the concatenation extension
	// should be left unadvertised and Upload-Concat headers ignored.
	DisableConcatenation bool
	// Respect the X-Forwarded-Host, X-Forwarded-Proto and Forwarded headers
	// potentially set by proxies when generating an absolute URL in the
	// response to POST requests.
	RespectForwardedHeaders bool
	// Cors can be used to customize the handling of Cross-Origin Resource
	// Sharing. See the CorsConfig struct for more details.
	Cors *CorsConfig
	// Logger is the logger to use internally, mostly for printing requests.
	Logger *slog.Logger
}

func (config *Config) validate() error {
	if config.Manager == nil {
		return errors.New("handler: Config needs a non-nil Manager")
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	base := config.BasePath
	uri, err := url.Parse(base)
	if err != nil {
		return err
	}

	// Ensure base path ends with slash to remove logic from absFileURL
	if base != "" && string(base[len(base)-1]) != "/" {
		base += "/"
	}

	// Ensure base path begins with slash if not absolute (starts with scheme)
	if !uri.IsAbs() && len(base) > 0 && string(base[0]) != "/" {
		base = "/" + base
	}
	config.BasePath = base
	config.isAbs = uri.IsAbs()

	if config.Cors == nil {
		config.Cors = &DefaultCorsConfig
	}

	return nil
}
