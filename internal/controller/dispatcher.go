package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/semaphore"

	"kvm-dashboard/internal/model"
)

const (
	DefaultMaxWorkers    = 4
	failureChannelBuffer = 32
)

// ActionDispatcher runs start/stop commands off the Loop goroutine.
type ActionDispatcher interface {
	Dispatch(kind model.ActionKind, name string)
	Failures() <-chan model.Failure
}

type task struct {
	kind model.ActionKind
	name string
}

// Dispatcher runs blocking hypervisor commands on an ants pool of at most
// maxWorkers goroutines. Idle pool workers expire, so nothing runs while
// there is no work. Tasks beyond the cap wait on a FIFO semaphore.
type Dispatcher struct {
	ctx        context.Context
	hv         Hypervisor
	logger     *slog.Logger
	maxWorkers int
	failures   chan model.Failure

	pool    *ants.Pool
	slots   *semaphore.Weighted
	active  atomic.Int32
	pending atomic.Int32
	wg      sync.WaitGroup
}

// NewDispatcher creates a pool whose hypervisor calls run under ctx. Calls
// in flight are not cancelled by anything but ctx.
func NewDispatcher(ctx context.Context, hv Hypervisor, maxWorkers int, logger *slog.Logger) (*Dispatcher, error) {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	pool, err := ants.NewPool(maxWorkers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Dispatcher{
		ctx:        ctx,
		hv:         hv,
		logger:     logger,
		maxWorkers: maxWorkers,
		failures:   make(chan model.Failure, failureChannelBuffer),
		pool:       pool,
		slots:      semaphore.NewWeighted(int64(maxWorkers)),
	}, nil
}

func (d *Dispatcher) Failures() <-chan model.Failure {
	return d.failures
}

// Dispatch queues a start or stop of name and returns immediately. Success
// is silent; a failure is delivered on Failures.
func (d *Dispatcher) Dispatch(kind model.ActionKind, name string) {
	d.wg.Add(1)
	d.pending.Add(1)
	go d.handoff(task{kind: kind, name: name})
}

// Active reports the number of tasks holding a worker slot.
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

// Pending reports the number of tasks waiting for a worker slot.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

// Wait blocks until every dispatched task has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the pool. Tasks already running are not interrupted.
func (d *Dispatcher) Close() {
	d.pool.Release()
}

func (d *Dispatcher) handoff(t task) {
	if err := d.slots.Acquire(d.ctx, 1); err != nil {
		d.pending.Add(-1)
		d.wg.Done()
		d.logger.Debug("dropping queued vm action after shutdown", "action", t.kind.String(), "vm", t.name)
		return
	}
	d.pending.Add(-1)
	d.active.Add(1)

	err := d.pool.Submit(func() {
		defer d.finish()
		d.run(t)
	})
	if err != nil {
		d.logger.Warn("vm action not submitted", "action", t.kind.String(), "vm", t.name, "error", err)
		d.report(t, fmt.Errorf("submit %s: %w", t.kind, err))
		d.finish()
	}
}

func (d *Dispatcher) finish() {
	d.active.Add(-1)
	d.slots.Release(1)
	d.wg.Done()
}

func (d *Dispatcher) run(t task) {
	d.logger.Info("vm action started", "action", t.kind.String(), "vm", t.name)

	var err error
	switch t.kind {
	case model.ActionStart:
		err = d.hv.Start(d.ctx, t.name)
	case model.ActionStop:
		err = d.hv.Stop(d.ctx, t.name)
	default:
		err = fmt.Errorf("unsupported action %s", t.kind)
	}
	if err == nil {
		d.logger.Info("vm action completed", "action", t.kind.String(), "vm", t.name)
		return
	}
	d.report(t, err)
}

func (d *Dispatcher) report(t task, err error) {
	select {
	case d.failures <- model.Failure{VM: t.name, Error: err.Error()}:
	case <-d.ctx.Done():
		d.logger.Debug("dropping vm action failure after shutdown", "vm", t.name, "error", err)
	}
}
