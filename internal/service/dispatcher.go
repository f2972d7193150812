package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ErrDispatcherClosed is returned to abort callbacks once Shutdown has begun
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Dispatcher runs background units of work with a cap on how many run at
// once. Units are never awaited by the submitter; each has its own panic
// boundary.
type Dispatcher struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher allowing maxConcurrent units at a time
func NewDispatcher(maxConcurrent int64, logger zerolog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sem:    semaphore.NewWeighted(maxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Go schedules run for key and returns immediately. If the unit can never
// start because the dispatcher is shutting down, abort is called instead.
func (d *Dispatcher) Go(key string, run func(ctx context.Context), abort func(err error)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		abort(ErrDispatcherClosed)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Str("key", key).Interface("panic", r).Msg("background unit panicked")
			}
		}()

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			abort(ErrDispatcherClosed)
			return
		}
		defer d.sem.Release(1)

		run(d.ctx)
	}()
}

// Shutdown stops accepting work and waits for running units. When ctx ends
// first, running units are canceled and Shutdown waits for them to return.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn().Msg("shutdown deadline reached, canceling running jobs")
		d.cancel()
		<-done
		return ctx.Err()
	}
}
