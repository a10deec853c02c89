package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	removed int64
	err     error
	calls   []time.Time
}

func (p *fakePurger) PurgeExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	p.calls = append(p.calls, now)
	return p.removed, p.err
}

type recordingObserver struct {
	tasks []string
	errs  []error
}

func (o *recordingObserver) ObserveJob(task string, err error) {
	o.tasks = append(o.tasks, task)
	o.errs = append(o.errs, err)
}

func TestSessionCleanupPurgesWithCurrentTime(t *testing.T) {
	purger := &fakePurger{removed: 3}
	observer := &recordingObserver{}
	job := NewSessionCleanupJob(purger, slog.New(slog.DiscardHandler), observer)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	require.NoError(t, job.Handle(context.Background(), NewSessionCleanupTask()))
	assert.Equal(t, []time.Time{fixed}, purger.calls)
	assert.Equal(t, []string{TaskSessionCleanup}, observer.tasks)
	assert.Equal(t, []error{nil}, observer.errs)
}

func TestSessionCleanupReportsFailure(t *testing.T) {
	boom := errors.New("db down")
	observer := &recordingObserver{}
	job := NewSessionCleanupJob(&fakePurger{err: boom}, slog.New(slog.DiscardHandler), observer)

	err := job.Handle(context.Background(), NewSessionCleanupTask())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []error{boom}, observer.errs)
}

func TestSessionCleanupWithoutObserver(t *testing.T) {
	job := NewSessionCleanupJob(&fakePurger{}, nil, nil)
	assert.NoError(t, job.Handle(context.Background(), NewSessionCleanupTask()))
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: RedisOpt("127.0.0.1:1"),
		Cron:      []CronRegistration{{Spec: "not a cron", Task: NewSessionCleanupTask()}},
	})
	assert.Error(t, err)
}

func TestRunWithoutWorker(t *testing.T) {
	var w *Worker
	assert.Error(t, w.Run(context.Background()))
}
