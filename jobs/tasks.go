package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionCleanup deletes login sessions past their expiry.
	TaskSessionCleanup = "session:cleanup"
)

// SessionPurger deletes expired session records.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Observer records the outcome of a task run.
type Observer interface {
	ObserveJob(task string, err error)
}

// NewSessionCleanupTask constructs the payload-less cleanup task.
func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskSessionCleanup, nil)
}

// SessionCleanupJob handles TaskSessionCleanup.
type SessionCleanupJob struct {
	purger   SessionPurger
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewSessionCleanupJob constructs the job. observer may be nil.
func NewSessionCleanupJob(purger SessionPurger, logger *slog.Logger, observer Observer) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{purger: purger, logger: logger, observer: observer, now: time.Now}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SessionCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	removed, err := j.purger.PurgeExpiredSessions(ctx, j.now())
	if j.observer != nil {
		j.observer.ObserveJob(TaskSessionCleanup, err)
	}
	if err != nil {
		j.logger.Error("session cleanup", slog.Any("error", err))
		return err
	}
	if removed > 0 {
		j.logger.Info("expired sessions removed", slog.Int64("count", removed))
	}
	return nil
}
