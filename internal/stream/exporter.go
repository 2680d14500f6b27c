package stream

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"kvm-dashboard/internal/controller"
	"kvm-dashboard/internal/model"
)

const DefaultBufferSize = 256

var _ controller.Sink = (*Exporter)(nil)

// FrameSender delivers frames to a remote collector. *GRPCClient is the
// production implementation.
type FrameSender interface {
	Send(ctx context.Context, f Frame) error
	Close(ctx context.Context) error
}

// Exporter is a view sink that mirrors every event to a FrameSender. Events
// are queued in a bounded buffer and sent from Run, so the sink methods
// never block the caller; when the buffer is full the newest event is
// dropped.
type Exporter struct {
	sender    FrameSender
	logger    *slog.Logger
	builder   frameBuilder
	frames    chan Frame
	seq       atomic.Uint64
	dropped   atomic.Uint64
	sent      atomic.Uint64
	connected atomic.Bool
}

func NewExporter(sender FrameSender, nodeID string, bufferSize int, logger *slog.Logger) *Exporter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Exporter{
		sender:  sender,
		logger:  logger,
		builder: frameBuilder{nodeID: nodeID, now: time.Now},
		frames:  make(chan Frame, bufferSize),
	}
}

// Run sends queued frames until ctx is done. Send failures are logged and
// the frame is discarded.
func (e *Exporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-e.frames:
			if err := e.sender.Send(ctx, f); err != nil {
				if e.connected.Swap(false) {
					e.logger.Warn("event export failed", "error", err)
				} else {
					e.logger.Debug("event export failed", "error", err)
				}
				continue
			}
			e.sent.Add(1)
			if !e.connected.Swap(true) {
				e.logger.Info("event export connected")
			}
		}
	}
}

func (e *Exporter) Close(ctx context.Context) error {
	return e.sender.Close(ctx)
}

// Connected reports whether the last send succeeded.
func (e *Exporter) Connected() bool {
	return e.connected.Load()
}

func (e *Exporter) Dropped() uint64 {
	return e.dropped.Load()
}

func (e *Exporter) Sent() uint64 {
	return e.sent.Load()
}

func (e *Exporter) enqueue(f Frame) error {
	f.Seq = e.seq.Add(1)
	select {
	case e.frames <- f:
	default:
		n := e.dropped.Add(1)
		e.logger.Warn("event export buffer full, dropping event", "kind", string(f.Kind), "seq", f.Seq, "dropped_total", n)
	}
	return nil
}

func (e *Exporter) Cleared() error {
	return e.enqueue(e.builder.frame(EventCleared))
}

func (e *Exporter) VMAdded(name, label string, affordance model.Affordance) error {
	return e.enqueue(e.builder.vmFrame(EventVMAdded, name, label, affordance))
}

func (e *Exporter) VMRemoved(name string) error {
	f := e.builder.frame(EventVMRemoved)
	f.VM = name
	return e.enqueue(f)
}

func (e *Exporter) VMStateChanged(name, label string, affordance model.Affordance) error {
	return e.enqueue(e.builder.vmFrame(EventVMState, name, label, affordance))
}

func (e *Exporter) VMCPUUpdated(name string, rate model.CPURate) error {
	return e.enqueue(e.builder.cpuFrame(name, rate))
}

func (e *Exporter) ErrorShown(message string, fatal bool) error {
	return e.enqueue(e.builder.errorFrame(message, fatal))
}

func (e *Exporter) ConnectedTransition() error {
	return e.enqueue(e.builder.frame(EventConnected))
}
