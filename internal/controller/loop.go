package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kvm-dashboard/internal/model"
)

// LoopState is the coarse connection phase shown to the operator.
type LoopState uint8

const (
	LoopConnecting LoopState = iota
	LoopRunning
)

func (s LoopState) String() string {
	if s == LoopRunning {
		return "running"
	}
	return "connecting"
}

// RefreshObserver is told the outcome of every refresh. err is the fetch
// error, nil on success.
type RefreshObserver interface {
	ObserveRefresh(at time.Time, err error)
}

// Loop is the single owner of the VM Cache. It serialises refreshes, action
// hand-off and failure handling.
type Loop struct {
	hv         Hypervisor
	dispatcher ActionDispatcher
	sink       Sink
	logger     *slog.Logger
	cache      *Cache
	state      LoopState
	observer   RefreshObserver
}

func NewLoop(hv Hypervisor, dispatcher ActionDispatcher, sink Sink, logger *slog.Logger) *Loop {
	return &Loop{
		hv:         hv,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger,
		cache:      NewCache(),
		state:      LoopConnecting,
	}
}

// SetObserver installs o. It must be called before Run.
func (l *Loop) SetObserver(o RefreshObserver) {
	l.observer = o
}

func (l *Loop) State() LoopState {
	return l.state
}

// Cache exposes the loop's cache for inspection. Only safe while Run is not
// executing.
func (l *Loop) Cache() *Cache {
	return l.cache
}

// Run refreshes once and then handles actions and failures until actions is
// closed or ctx is done. It returns an error only when the sink fails.
func (l *Loop) Run(ctx context.Context, actions <-chan model.Action) error {
	if err := l.Refresh(ctx); err != nil {
		return err
	}

	failures := l.dispatcher.Failures()
	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-actions:
			if !ok {
				l.logger.Debug("action source closed, stopping loop")
				return nil
			}
			if err := l.HandleAction(ctx, a); err != nil {
				return err
			}
		case f := <-failures:
			if err := l.HandleFailure(f); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) HandleAction(ctx context.Context, a model.Action) error {
	switch a.Kind {
	case model.ActionRefresh:
		return l.Refresh(ctx)
	case model.ActionStart, model.ActionStop:
		l.logger.Info("dispatching vm action", "action", a.Kind.String(), "vm", a.VM)
		l.dispatcher.Dispatch(a.Kind, a.VM)
		return nil
	default:
		l.logger.Warn("ignoring unknown action", "action", a.Kind.String())
		return nil
	}
}

// HandleFailure re-sends the VM's last known state so the view drops any
// optimistic pending marker, then shows the error.
func (l *Loop) HandleFailure(f model.Failure) error {
	l.logger.Warn("vm action failed", "vm", f.VM, "error", f.Error)
	if st, ok := l.cache.State(f.VM); ok {
		if err := l.sink.VMStateChanged(f.VM, st.Label(), st.Affordance()); err != nil {
			return fmt.Errorf("deliver state of %s: %w", f.VM, err)
		}
	}
	if err := l.sink.ErrorShown(f.Error, false); err != nil {
		return fmt.Errorf("deliver action failure: %w", err)
	}
	return nil
}

// Refresh lists every machine and reconciles the cache. A fetch error
// clears the cache and the view and is shown as a non-fatal error.
func (l *Loop) Refresh(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	machines, fetchErr := l.hv.ListMachines(ctx)
	if l.observer != nil {
		l.observer.ObserveRefresh(time.Now(), fetchErr)
	}
	if fetchErr != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("refresh failed, clearing vm list", "error", fetchErr)
		l.cache.Clear()
		if err := l.sink.Cleared(); err != nil {
			return fmt.Errorf("deliver clear: %w", err)
		}
		if err := l.sink.ErrorShown(fetchErr.Error(), false); err != nil {
			return fmt.Errorf("deliver refresh error: %w", err)
		}
		return nil
	}

	if err := l.cache.Reconcile(machines, l.sink); err != nil {
		return fmt.Errorf("deliver vm update: %w", err)
	}
	l.logger.Debug("refresh complete", "vms", l.cache.Len())

	if l.state == LoopConnecting {
		l.state = LoopRunning
		if err := l.sink.ConnectedTransition(); err != nil {
			return fmt.Errorf("deliver connected: %w", err)
		}
	}
	return nil
}
