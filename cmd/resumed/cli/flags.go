package cli

import (
	"flag"
	"path/filepath"
	"time"

	"github.com/resumed/resumed/internal/grouped_flags"
	"golang.org/x/exp/slices"
)

var storageBackends = []string{"file", "memory"}
var registryBackends = []string{"memory", "leveldb"}
var logFormats = []string{"text", "json"}

var Flags struct {
	HttpHost                string
	HttpPort                string
	HttpSock                string
	Basepath                string
	BehindProxy             bool
	MaxSize                 int64
	DisableDownload         bool
	DisableTermination      bool
	DisableConcatenation    bool
	StorageBackend          string
	UploadDir               string
	MemoryStorageCapacity   int64
	RegistryBackend         string
	RegistryDir             string
	RedisURI                string
	UploadTTL               time.Duration
	SweepInterval           time.Duration
	MaxChecksumChunkSize    int64
	DisableCors             bool
	CorsAllowOrigin         string
	CorsAllowCredentials    bool
	CorsAllowMethods        string
	CorsAllowHeaders        string
	CorsMaxAge              string
	CorsExposeHeaders       string
	ExposeMetrics           bool
	MetricsPath             string
	ExposePprof             bool
	PprofPath               string
	PprofBlockProfileRate   int
	PprofMutexProfileRate   int
	ShowGreeting            bool
	ShowVersion             bool
	VerboseOutput           bool
	LogFormat               string
	NetworkTimeout          time.Duration
	ShutdownTimeout         time.Duration
	AcquireLockTimeout      time.Duration
}

func ParseFlags() {
	fs := grouped_flags.NewFlagGroupSet(flag.ExitOnError)

	fs.AddGroup("Listening options", func(f *flag.FlagSet) {
		f.StringVar(&Flags.HttpHost, "host", "0.0.0.0", "Host to bind HTTP server to")
		f.StringVar(&Flags.HttpPort, "port", "8080", "Port to bind HTTP server to")
		f.StringVar(&Flags.HttpSock, "unix-sock", "", "If set, will listen to a UNIX socket at this location instead of a TCP socket")
		f.StringVar(&Flags.Basepath, "base-path", "/files/", "Basepath of the HTTP server")
		f.BoolVar(&Flags.BehindProxy, "behind-proxy", false, "Respect X-Forwarded-* and similar headers which may be set by proxies")
	})

	fs.AddGroup("Upload protocol options", func(f *flag.FlagSet) {
		f.Int64Var(&Flags.MaxSize, "max-size", 0, "Maximum size of a single upload in bytes")
		f.Int64Var(&Flags.MaxChecksumChunkSize, "max-checksum-chunk-size", 16*1024*1024, "Maximum size in bytes of a request body carrying an Upload-Checksum header. Checksummed chunks are buffered in memory before any byte is stored.")
		f.BoolVar(&Flags.DisableDownload, "disable-download", false, "Disable the download endpoint")
		f.BoolVar(&Flags.DisableTermination, "disable-termination", false, "Disable the termination endpoint")
		f.BoolVar(&Flags.DisableConcatenation, "disable-concatenation", false, "Disable the concatenation extension")
	})

	fs.AddGroup("Storage options", func(f *flag.FlagSet) {
		f.StringVar(&Flags.StorageBackend, "storage", "file", "Storage backend for upload bodies (file or memory)")
		f.StringVar(&Flags.UploadDir, "upload-dir", "./data", "Directory to store uploads in when using the file backend")
		f.Int64Var(&Flags.MemoryStorageCapacity, "memory-storage-capacity", 0, "Total capacity in bytes of the memory backend. Zero means unlimited.")
	})

	fs.AddGroup("Registry options", func(f *flag.FlagSet) {
		f.StringVar(&Flags.RegistryBackend, "registry", "memory", "Registry backend for upload metadata (memory or leveldb)")
		f.StringVar(&Flags.RegistryDir, "registry-dir", "./registry", "Directory for the LevelDB registry database")
	})

	fs.AddGroup("Locking options", func(f *flag.FlagSet) {
		f.StringVar(&Flags.RedisURI, "redis-uri", "", "Use Redis for distributed upload locking, connecting with this URI (e.g. redis://localhost:6379). If empty, an in-memory locker is used.")
	})

	fs.AddGroup("Expiration options", func(f *flag.FlagSet) {
		f.DurationVar(&Flags.UploadTTL, "upload-ttl", 0, "Duration after which unfinished uploads expire and become eligible for removal. Zero disables expiration.")
		f.DurationVar(&Flags.SweepInterval, "sweep-interval", time.Minute, "Interval between sweeps for expired uploads")
	})

	fs.AddGroup("CORS options", func(f *flag.FlagSet) {
		f.BoolVar(&Flags.DisableCors, "disable-cors", false, "Disable CORS headers")
		f.StringVar(&Flags.CorsAllowOrigin, "cors-allow-origin", ".*", "Regular expression used to determine if the Origin header is allowed. If not, no CORS headers will be sent. By default, all origins are allowed.")
		f.BoolVar(&Flags.CorsAllowCredentials, "cors-allow-credentials", false, "Allow credentials by setting Access-Control-Allow-Credentials: true")
		f.StringVar(&Flags.CorsAllowMethods, "cors-allow-methods", "", "Comma-separated list of request methods that are included in Access-Control-Allow-Methods in addition to the ones required by the protocol")
		f.StringVar(&Flags.CorsAllowHeaders, "cors-allow-headers", "", "Comma-separated list of headers that are included in Access-Control-Allow-Headers in addition to the ones required by the protocol")
		f.StringVar(&Flags.CorsMaxAge, "cors-max-age", "86400", "Value of the Access-Control-Max-Age header to control the cache duration of CORS responses.")
		f.StringVar(&Flags.CorsExposeHeaders, "cors-expose-headers", "", "Comma-separated list of headers that are included in Access-Control-Expose-Headers in addition to the ones required by the protocol")
	})

	fs.AddGroup("Monitoring, profiling, logging options", func(f *flag.FlagSet) {
		f.BoolVar(&Flags.ExposeMetrics, "expose-metrics", true, "Expose metrics about server usage")
		f.StringVar(&Flags.MetricsPath, "metrics-path", "/metrics", "Path under which the metrics endpoint will be accessible")
		f.BoolVar(&Flags.ExposePprof, "expose-pprof", false, "Expose the pprof interface over HTTP for profiling")
		f.StringVar(&Flags.PprofPath, "pprof-path", "/debug/pprof/", "Path under which the pprof endpoint will be accessible")
		f.IntVar(&Flags.PprofBlockProfileRate, "pprof-block-profile-rate", 0, "Fraction of goroutine blocking events that are reported in the blocking profile")
		f.IntVar(&Flags.PprofMutexProfileRate, "pprof-mutex-profile-rate", 0, "Fraction of mutex contention events that are reported in the mutex profile")
		f.BoolVar(&Flags.ShowGreeting, "show-greeting", true, "Show the greeting message for GET requests to the root path")
		f.BoolVar(&Flags.ShowVersion, "version", false, "Print version information")
		f.BoolVar(&Flags.VerboseOutput, "verbose", true, "Enable verbose logging output")
		f.StringVar(&Flags.LogFormat, "log-format", "text", "Logging format (text or json)")
	})

	fs.AddGroup("Timeout options", func(f *flag.FlagSet) {
		f.DurationVar(&Flags.NetworkTimeout, "network-timeout", 60*time.Second, "Timeout for reading the request and writing the response. If the server does not receive data for this duration, it will consider the connection dead.")
		f.DurationVar(&Flags.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "Timeout for closing connections gracefully during shutdown. After the timeout, the server will exit regardless of any open connection.")
		f.DurationVar(&Flags.AcquireLockTimeout, "acquire-lock-timeout", 20*time.Second, "Timeout for a request handler to wait for acquiring the upload lock.")
	})

	fs.Parse()

	if !slices.Contains(storageBackends, Flags.StorageBackend) {
		stderr.Fatalf("Unknown storage backend in -storage flag: %s", Flags.StorageBackend)
	}
	if !slices.Contains(registryBackends, Flags.RegistryBackend) {
		stderr.Fatalf("Unknown registry backend in -registry flag: %s", Flags.RegistryBackend)
	}
	if !slices.Contains(logFormats, Flags.LogFormat) {
		stderr.Fatalf("Unknown format in -log-format flag: %s", Flags.LogFormat)
	}

	if Flags.UploadDir != "" {
		Flags.UploadDir, _ = filepath.Abs(Flags.UploadDir)
	}

	SetupStructuredLogger()
}
