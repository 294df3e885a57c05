// Package sweeper runs the expiry sweep at a fixed interval. The sweep
// itself lives in the state machine (manager.Sweep) and holds no hidden
// state, so it stays directly testable; this package only supplies the
// scheduling.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/resumed/resumed/pkg/manager"
)

// Sweeper periodically removes expired uploads.
type Sweeper struct {
	// Manager performs the actual sweep. Required.
	Manager *manager.Manager
	// Interval between sweeps. Defaults to 1 minute.
	Interval time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Run blocks and sweeps until the context is cancelled.
func (s Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Manager.Sweep(ctx)
			if err != nil {
				logger.Error("SweepError", "error", err.Error())
				continue
			}
			if len(removed) > 0 {
				logger.Info("SweepComplete", "removed", removed)
			}
		}
	}
}
