package loginlog

import (
	"context"
	"time"

	"github.com/stewardhq/steward/pkg/async"
	"github.com/stewardhq/steward/pkg/observability"
)

// Recorder writes attempts asynchronously through a bounded worker pool so a
// slow audit table never delays a login response. Failed writes are logged
// and dropped.
type Recorder struct {
	store  *Store
	pool   *async.WorkerPool
	logger *observability.Logger
}

// NewRecorder starts the recorder's worker pool
func NewRecorder(ctx context.Context, store *Store, logger *observability.Logger) *Recorder {
	return &Recorder{
		store:  store,
		pool:   async.NewWorkerPool(ctx, logger, 2, "login-log", 5*time.Second),
		logger: logger,
	}
}

// Record queues an attempt for insertion. Never returns an error; the audit
// trail is best-effort by contract.
func (r *Recorder) Record(e Entry) {
	if e.LoginTime.IsZero() {
		e.LoginTime = time.Now()
	}
	err := r.pool.Submit(func(ctx context.Context) error {
		return r.store.Insert(ctx, &e)
	})
	if err != nil {
		r.logger.WithError(err).WithField("username", e.Username).Warn("login log dropped")
	}
}

// Close drains pending writes
func (r *Recorder) Close() error {
	return r.pool.Shutdown(10 * time.Second)
}
