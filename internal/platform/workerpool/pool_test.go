package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/noodle-soup/noodle/internal/platform/workerpool"
	"github.com/noodle-soup/noodle/internal/shared"
)

func TestRunReturnsResult(t *testing.T) {
	p := workerpool.New(2)
	defer p.Close()

	v, err := workerpool.Run(context.Background(), p, func() (int, error) { return 21 * 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunPassesThroughTaskError(t *testing.T) {
	p := workerpool.New(1)
	defer p.Close()

	wrong := errors.New("mismatch")
	_, err := workerpool.Run(context.Background(), p, func() (bool, error) { return false, wrong })
	assert.ErrorIs(t, err, wrong)

	var dispatch *shared.TaskDispatchError
	assert.False(t, errors.As(err, &dispatch))
}

func TestRunAfterCloseIsDispatchError(t *testing.T) {
	p := workerpool.New(1)
	p.Close()

	_, err := workerpool.Run(context.Background(), p, func() (int, error) { return 1, nil })
	var dispatch *shared.TaskDispatchError
	require.ErrorAs(t, err, &dispatch)
	assert.ErrorIs(t, err, workerpool.ErrClosed)
}

func TestRunPanicIsDispatchError(t *testing.T) {
	p := workerpool.New(1)
	defer p.Close()

	_, err := workerpool.Run(context.Background(), p, func() (int, error) { panic("bad hash") })
	var dispatch *shared.TaskDispatchError
	assert.ErrorAs(t, err, &dispatch)
}

func TestRunCancelledWhileWaitingForSlot(t *testing.T) {
	p := workerpool.New(1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = workerpool.Run(context.Background(), p, func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := workerpool.Run(ctx, p, func() (int, error) { return 1, nil })
	var dispatch *shared.TaskDispatchError
	assert.ErrorAs(t, err, &dispatch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestRunBoundsConcurrency(t *testing.T) {
	p := workerpool.New(2)
	defer p.Close()

	var running, peak atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := workerpool.Run(ctx, p, func() (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
