package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/resumed/resumed/pkg/handler"
	"github.com/resumed/resumed/pkg/sweeper"
)

// Serve sets up the upload manager and the HTTP server and begins serving
// requests. It blocks until the process receives SIGINT or SIGTERM, then
// shuts the server down gracefully.
func Serve() {
	CreateComposer()
	mgr := CreateManager()

	config := handler.Config{
		Manager:                 mgr,
		MaxSize:                 Flags.MaxSize,
		BasePath:                Flags.Basepath,
		RespectForwardedHeaders: Flags.BehindProxy,
		DisableDownload:         Flags.DisableDownload,
		DisableTermination:      Flags.DisableTermination,
		DisableConcatenation:    Flags.DisableConcatenation,
		Cors:                    getCorsConfig(),
		Logger:                  logger,
	}

	h, err := handler.NewHandler(config)
	if err != nil {
		stderr.Fatalf("Unable to create handler: %s", err)
	}

	basepath := Flags.Basepath
	address := ""
	if Flags.HttpSock != "" {
		address = Flags.HttpSock
		stdout.Printf("Using %s as socket to listen.\n", address)
	} else {
		address = Flags.HttpHost + ":" + Flags.HttpPort
		stdout.Printf("Using %s as address to listen.\n", address)
	}
	stdout.Printf("Using %s as the base path.\n", basepath)
	stdout.Printf("Supported extensions: %s\n", h.SupportedExtensions())

	mux := http.NewServeMux()
	if basepath == "/" {
		// The tus endpoint is at the root of the server, so the greeting
		// cannot be mounted.
		mux.Handle("/", http.StripPrefix("/", h))
	} else {
		// Mount the tus handler at the basepath with and without a
		// trailing slash, so /files and /files/ both reach it.
		mux.Handle(basepath, http.StripPrefix(basepath, h))
		mux.Handle(strings.TrimSuffix(basepath, "/"), http.StripPrefix(strings.TrimSuffix(basepath, "/"), h))

		if Flags.ShowGreeting {
			PrepareGreeting()
			mux.HandleFunc("/", DisplayGreeting)
		}
	}

	if Flags.ExposeMetrics {
		SetupMetrics(mux, h)
	}
	if Flags.ExposePprof {
		SetupPprof(mux)
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	if Flags.UploadTTL > 0 {
		stdout.Printf("Removing uploads that have not been finished within %s.\n", Flags.UploadTTL)
		go sweeper.Sweeper{
			Manager:  mgr,
			Interval: Flags.SweepInterval,
			Logger:   logger,
		}.Run(sweepCtx)
	}

	var listener net.Listener
	if Flags.HttpSock != "" {
		listener, err = NewUnixListener(address, Flags.NetworkTimeout)
	} else {
		listener, err = NewListener(address, Flags.NetworkTimeout)
	}
	if err != nil {
		stderr.Fatalf("Unable to create listener: %s", err)
	}

	server := &http.Server{
		Handler: mux,
	}

	shutdownComplete := setupSignalHandler(server)

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		// ErrServerClosed means that Shutdown was invoked, so wait until
		// the open requests have been drained before cleaning up.
		<-shutdownComplete
	} else if err != nil {
		stderr.Fatalf("Unable to serve: %s", err)
	}

	stopSweeper()
	CloseComposer()
}

func getCorsConfig() *handler.CorsConfig {
	config := handler.DefaultCorsConfig
	config.Disable = Flags.DisableCors
	config.AllowCredentials = Flags.CorsAllowCredentials
	config.MaxAge = Flags.CorsMaxAge

	allowOrigin, err := regexp.Compile(Flags.CorsAllowOrigin)
	if err != nil {
		stderr.Fatalf("Invalid regular expression in -cors-allow-origin flag: %s", err)
	}
	config.AllowOrigin = allowOrigin

	if Flags.CorsAllowMethods != "" {
		config.AllowMethods += ", " + Flags.CorsAllowMethods
	}
	if Flags.CorsAllowHeaders != "" {
		config.AllowHeaders += ", " + Flags.CorsAllowHeaders
	}
	if Flags.CorsExposeHeaders != "" {
		config.ExposeHeaders += ", " + Flags.CorsExposeHeaders
	}

	return &config
}

func setupSignalHandler(server *http.Server) <-chan struct{} {
	shutdownComplete := make(chan struct{})

	// We read up to two signals, so use a capacity of 2 here to not miss one.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signals
		stdout.Println("Received interrupt signal. Shutting down server gracefully...")
		stdout.Println("Interrupt the process again to force a shutdown.")

		go func() {
			<-signals
			stderr.Fatalf("Received second interrupt signal. Exiting immediately!")
		}()

		ctx := context.Background()
		if Flags.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, Flags.ShutdownTimeout)
			defer cancel()
		}

		if err := server.Shutdown(ctx); err != nil {
			stderr.Printf("Failed to shutdown gracefully: %s\n", err)
		}

		close(shutdownComplete)
	}()

	return shutdownComplete
}
