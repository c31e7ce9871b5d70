package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"watchvault/internal/shared"
)

// Scheduler triggers recurring sweeps of all platforms at a fixed interval.
// The first sweep runs immediately; later ones on the ticker. Stop via the
// context.
type Scheduler struct {
	engine   *SyncEngine
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler creates a Scheduler running the engine's SyncAll every interval.
func NewScheduler(engine *SyncEngine, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{engine: engine, interval: interval, logger: logger}
}

// Run blocks until ctx is done, sweeping all platforms once per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	results := s.engine.SyncAll(ctx, nil)
	for _, result := range results {
		switch {
		case result.Skipped:
			s.logger.Debug("platform skipped", "platform", result.Platform)
		case result.Err != nil:
			s.logger.Error("platform sync failed", "platform", result.Platform, "err", result.Err)
		default:
			s.logger.Info("platform sync done",
				"platform", result.Platform,
				"status", result.Job.Status(),
				"saved", result.Job.ItemsSuccess(),
			)
		}
	}
}
