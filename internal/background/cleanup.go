package background

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is anything with expired state worth reclaiming on a schedule.
// The in-memory attempt limiter already prunes lazily on access; the
// sweeper keeps idle keys from lingering between requests.
type Sweeper interface {
	Sweep()
}

// SweepManager periodically sweeps expired auth attempts out of the limiter
type SweepManager struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *SweepManager {
	return &SweepManager{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.sweeper.Sweep()
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
