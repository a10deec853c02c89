// Package workerpool runs CPU-bound work on a bounded set of goroutines so it
// never occupies request handling capacity.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/noodle-soup/noodle/internal/shared"
)

// ErrClosed is reported when work is submitted after Close.
var ErrClosed = errors.New("workerpool: closed")

// Pool bounds concurrent work to a fixed number of slots.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New returns a Pool with size slots; size <= 0 uses GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Close rejects new work and waits for in-flight work to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

type result[T any] struct {
	val T
	err error
}

// Run executes fn on the pool and waits for its result. Failures to schedule
// or complete fn, including a panic inside fn, are *shared.TaskDispatchError;
// an error returned by fn itself is passed through unchanged.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return zero, &shared.TaskDispatchError{Err: ErrClosed}
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return zero, &shared.TaskDispatchError{Err: err}
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				done <- result[T]{err: &shared.TaskDispatchError{Err: fmt.Errorf("workerpool: task panicked: %v", rec)}}
			}
		}()
		val, err := fn()
		done <- result[T]{val: val, err: err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		return zero, &shared.TaskDispatchError{Err: ctx.Err()}
	}
}
