package cli

import (
	"os"

	"github.com/resumed/resumed/pkg/manager"
	"github.com/resumed/resumed/pkg/memorylocker"
	"github.com/resumed/resumed/pkg/redislocker"
	"github.com/resumed/resumed/pkg/registry"
	"github.com/resumed/resumed/pkg/registry/ldb"
	"github.com/resumed/resumed/pkg/registry/memory"
	"github.com/resumed/resumed/pkg/storage"
	"github.com/resumed/resumed/pkg/storage/filestore"
	"github.com/resumed/resumed/pkg/storage/memstore"
)

// Composer holds the building blocks of the upload manager, selected from
// the command line flags.
var Composer struct {
	Registry registry.Registry
	Backend  storage.Backend
	Locker   manager.Locker

	// close releases resources held by the components, e.g. the LevelDB
	// database handle. Invoked after the HTTP server has shut down.
	close []func() error
}

func CreateComposer() {
	switch Flags.StorageBackend {
	case "memory":
		if Flags.MemoryStorageCapacity > 0 {
			stdout.Printf("Using in-memory storage with a capacity of %.2fMB.\n", float64(Flags.MemoryStorageCapacity)/1024/1024)
			Composer.Backend = memstore.NewWithCapacity(Flags.MemoryStorageCapacity)
		} else {
			stdout.Printf("Using unbounded in-memory storage.\n")
			Composer.Backend = memstore.New()
		}
	default:
		stdout.Printf("Using '%s' as directory storage.\n", Flags.UploadDir)
		if err := os.MkdirAll(Flags.UploadDir, os.FileMode(0774)); err != nil {
			stderr.Fatalf("Unable to ensure directory exists: %s", err)
		}
		Composer.Backend = filestore.New(Flags.UploadDir)
	}

	switch Flags.RegistryBackend {
	case "leveldb":
		stdout.Printf("Using '%s' as LevelDB registry.\n", Flags.RegistryDir)
		reg, err := ldb.Open(Flags.RegistryDir)
		if err != nil {
			stderr.Fatalf("Unable to open registry database: %s", err)
		}
		Composer.Registry = reg
		Composer.close = append(Composer.close, reg.Close)
	default:
		stdout.Printf("Using in-memory registry.\n")
		Composer.Registry = memory.New()
	}

	if Flags.RedisURI != "" {
		stdout.Printf("Using Redis as distributed locker.\n")
		locker, err := redislocker.New(Flags.RedisURI, redislocker.WithLogger(logger))
		if err != nil {
			stderr.Fatalf("Unable to create Redis locker: %s", err)
		}
		Composer.Locker = locker
	} else {
		Composer.Locker = memorylocker.New()
	}
}

// CreateManager assembles the upload state machine from the composed parts.
func CreateManager() *manager.Manager {
	mgr, err := manager.New(manager.Config{
		Registry:             Composer.Registry,
		Backend:              Composer.Backend,
		Locker:               Composer.Locker,
		UploadTTL:            Flags.UploadTTL,
		MaxChecksumChunkSize: Flags.MaxChecksumChunkSize,
		AcquireLockTimeout:   Flags.AcquireLockTimeout,
		Logger:               logger,
	})
	if err != nil {
		stderr.Fatalf("Unable to create upload manager: %s", err)
	}

	return mgr
}

// CloseComposer shuts the composed components down in reverse order.
func CloseComposer() {
	for i := len(Composer.close) - 1; i >= 0; i-- {
		if err := Composer.close[i](); err != nil {
			stderr.Printf("Error closing component: %s", err)
		}
	}
}
