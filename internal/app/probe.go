package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	probeWriteTimeout = 2 * time.Second
	probeCheckTimeout = time.Second
)

// runProbe serves the liveness probe on addr until ctx is done.
func (a *App) runProbe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	a.logger.Info("probe endpoint listening", "addr", ln.Addr().String())
	return a.serveProbe(ctx, ln)
}

// serveProbe answers every connection with one status line and closes it.
// It owns ln.
func (a *App) serveProbe(ctx context.Context, ln net.Listener) error {
	defer func() { _ = ln.Close() }()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept probe endpoint %s: %w", ln.Addr(), err)
		}

		_ = conn.SetDeadline(time.Now().Add(probeWriteTimeout))
		_, _ = conn.Write([]byte(a.probeStatus(ctx) + "\n"))
		_ = conn.Close()
	}
}

func (a *App) probeStatus(ctx context.Context) string {
	checkCtx, cancel := context.WithTimeout(ctx, probeCheckTimeout)
	defer cancel()
	if err := a.health.Check(checkCtx); err != nil {
		a.logger.Debug("probe reports degraded", "error", err)
		return "kvm-dashboard:degraded"
	}
	return "kvm-dashboard:ok"
}
