package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"kvm-dashboard/internal/controller"
	"kvm-dashboard/internal/model"
)

// runWithSignals runs fn until it returns or SIGINT/SIGTERM arrives. After
// a signal fn gets shutdown_timeout to finish; a second signal or the
// timeout abandons it.
func (a *App) runWithSignals(ctx context.Context, fn func(context.Context) error) error {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- fn(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := a.Close(shutdownCtx); err != nil {
		a.logger.Warn("shutdown cleanup failed", "error", err)
	}
	a.logger.Log(shutdownCtx, slog.LevelDebug, "final health", "snapshot", a.health.Snapshot())

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("kvm-dashboard stopped")
	return nil
}

// run owns one session: the loop, the dispatcher, the front end and the
// optional exporter. It returns once the front end is done and the loop
// has drained, or on the first fatal error.
func (a *App) run(ctx context.Context, fe frontend) error {
	actions := make(chan model.Action, a.cfg.ActionBuffer)

	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()
	dispatcher, err := controller.NewDispatcher(dispatchCtx, a.hv, a.cfg.MaxWorkers, a.logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	g, gctx := errgroup.WithContext(ctx)
	primary, runFrontend := fe.start(gctx, actions)

	var mirrors []controller.Sink
	if a.exporter != nil {
		mirrors = append(mirrors, a.exporter)
	}
	loop := controller.NewLoop(a.hv, dispatcher, controller.Tee(a.logger, primary, mirrors...), a.logger)
	loop.SetObserver(a.health)

	loopDone := make(chan struct{})
	frontendDone := make(chan struct{})

	g.Go(func() error {
		defer close(loopDone)
		err := loop.Run(gctx, actions)
		if err == nil || errors.Is(err, controller.ErrViewClosed) {
			return nil
		}
		a.logger.Error("reconciliation loop failed", "error", err)
		if fe.interactive {
			_ = primary.ErrorShown(err.Error(), true)
			select {
			case <-frontendDone:
			case <-gctx.Done():
			}
		}
		return err
	})

	g.Go(func() error {
		defer close(frontendDone)
		err := runFrontend()
		// Nothing sends on actions once the front end has returned.
		close(actions)
		return err
	})

	if a.exporter != nil {
		g.Go(func() error {
			exportCtx, cancel := context.WithCancel(gctx)
			defer cancel()
			go func() {
				select {
				case <-loopDone:
				case <-exportCtx.Done():
				}
				cancel()
			}()
			return a.exporter.Run(exportCtx)
		})
	}

	if addr := strings.TrimSpace(a.cfg.ProbeListenAddr); addr != "" && !fe.interactive {
		g.Go(func() error {
			probeCtx, cancel := context.WithCancel(gctx)
			defer cancel()
			go func() {
				select {
				case <-loopDone:
				case <-probeCtx.Done():
				}
				cancel()
			}()
			return a.runProbe(probeCtx, addr)
		})
	}

	err = g.Wait()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelWait()
	if werr := dispatcher.Wait(waitCtx); werr != nil {
		a.logger.Warn("abandoning vm actions still in flight", "active", dispatcher.Active(), "pending", dispatcher.Pending())
		cancelDispatch()
	}
	return err
}
