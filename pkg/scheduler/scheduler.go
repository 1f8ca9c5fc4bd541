// Package scheduler runs the periodic maintenance jobs: the session sweep
// and login log retention.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stewardhq/steward/pkg/observability"
)

// Scheduler wraps a cron runner with named jobs and panic isolation
type Scheduler struct {
	cron   *cron.Cron
	logger *observability.Logger
}

// New creates a stopped scheduler
func New(logger *observability.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddJob registers fn under the given cron spec. A panicking job is logged
// and never takes down the process.
func (s *Scheduler) AddJob(name, spec string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithField("job", name).Errorf("scheduled job panicked: %v", r)
			}
		}()

		start := time.Now()
		s.logger.WithField("job", name).Debug("scheduled job starting")
		fn(context.Background())
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": time.Since(start).String(),
		}).Debug("scheduled job finished")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	return nil
}

// Start begins running jobs on their schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
