package scheduler

import (
	"context"
	"time"

	"github.com/stewardhq/steward/pkg/observability"
)

const (
	// Sweep expired sessions at the top of every hour
	sessionSweepSpec = "0 * * * *"
	// Prune old login logs nightly, off the busy hours
	loginLogRetentionSpec = "30 3 * * *"

	loginLogRetention = 90 * 24 * time.Hour
)

// Sweeper removes expired sessions
type Sweeper interface {
	Sweep(ctx context.Context)
}

// LogPruner deletes login log entries older than a cutoff
type LogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RegisterMaintenanceJobs wires the standing jobs onto the scheduler
func RegisterMaintenanceJobs(s *Scheduler, sweeper Sweeper, pruner LogPruner, logger *observability.Logger) error {
	if err := s.AddJob("session-sweep", sessionSweepSpec, sweeper.Sweep); err != nil {
		return err
	}

	return s.AddJob("login-log-retention", loginLogRetentionSpec, func(ctx context.Context) {
		cutoff := time.Now().Add(-loginLogRetention)
		deleted, err := pruner.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.WithError(err).Error("login log retention failed")
			return
		}
		if deleted > 0 {
			logger.WithField("deleted", deleted).Info("pruned old login logs")
		}
	})
}
