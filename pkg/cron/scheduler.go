// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmondal123/excel-chat/internal/domain/terms/service"
)

const sweepTimeout = time.Minute

// Scheduler runs the periodic dataset TTL sweep.
type Scheduler struct {
	cron     *cron.Cron
	service  *service.Service
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a job scheduler. The schedule uses the standard
// 5-field cron format.
func NewScheduler(svc *service.Service, schedule string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		service:  svc,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepDatasets); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("sweep_schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the dataset sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweepDatasets()
}

func (s *Scheduler) sweepDatasets() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.service.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("dataset sweep failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		s.logger.Info("dataset sweep completed", slog.Int("removed", removed))
	}
}
