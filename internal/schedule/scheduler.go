// Package schedule triggers ingestion runs on a cron schedule inside the server.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/ingest"
)

// Runner starts one ingestion run.
type Runner interface {
	Run(ctx context.Context) (archive.RunReport, error)
}

// Scheduler wraps a cron instance with a single ingestion entry.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	ctx    context.Context
	logger *zap.Logger
	entry  cron.EntryID
}

// New registers runner under spec (standard five-field cron syntax or
// descriptors such as @hourly). Runs use ctx, so canceling it stops a run
// between issues.
func New(ctx context.Context, spec string, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   spec,
		ctx:    ctx,
		logger: logger.Named("schedule"),
	}
	id, err := s.cron.AddFunc(spec, s.trigger)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Ingestion schedule started", zap.String("schedule", s.spec), zap.Time("next", s.Next()))
}

// Stop stops scheduling and waits for a running ingestion to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next activation time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) trigger() {
	report, err := s.runner.Run(s.ctx)
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		s.logger.Info("Scheduled run skipped; another run is active")
	case err != nil:
		s.logger.Error("Scheduled run failed", zap.String("run_id", report.RunID), zap.Error(err))
	default:
		s.logger.Info("Scheduled run finished",
			zap.String("run_id", report.RunID),
			zap.Int("created", report.Counters.Created),
			zap.Int("updated", report.Counters.Updated),
		)
	}
}
