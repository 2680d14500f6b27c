package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"kvm-dashboard/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type event struct {
	kind       string
	name       string
	label      string
	affordance model.Affordance
	rate       model.CPURate
	message    string
	fatal      bool
}

// recordingSink captures events. failOn makes the named event kind return err.
type recordingSink struct {
	events []event
	failOn string
	err    error
}

func (s *recordingSink) record(e event) error {
	s.events = append(s.events, e)
	if s.failOn != "" && s.failOn == e.kind {
		return s.err
	}
	return nil
}

func (s *recordingSink) Cleared() error {
	return s.record(event{kind: "cleared"})
}

func (s *recordingSink) VMAdded(name, label string, a model.Affordance) error {
	return s.record(event{kind: "added", name: name, label: label, affordance: a})
}

func (s *recordingSink) VMRemoved(name string) error {
	return s.record(event{kind: "removed", name: name})
}

func (s *recordingSink) VMStateChanged(name, label string, a model.Affordance) error {
	return s.record(event{kind: "state", name: name, label: label, affordance: a})
}

func (s *recordingSink) VMCPUUpdated(name string, rate model.CPURate) error {
	return s.record(event{kind: "cpu", name: name, rate: rate})
}

func (s *recordingSink) ErrorShown(message string, fatal bool) error {
	return s.record(event{kind: "error", message: message, fatal: fatal})
}

func (s *recordingSink) ConnectedTransition() error {
	return s.record(event{kind: "connected"})
}

func (s *recordingSink) kinds() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.kind)
	}
	return out
}

func (s *recordingSink) ofKind(kind string) []event {
	var out []event
	for _, e := range s.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.events = nil
}

// fakeHypervisor serves queued snapshots in order; the last one repeats.
type fakeHypervisor struct {
	mu        sync.Mutex
	snapshots [][]model.MachineInfo
	listErrs  []error
	calls     int
	startFn   func(ctx context.Context, name string) error
	stopFn    func(ctx context.Context, name string) error
}

func (h *fakeHypervisor) push(machines []model.MachineInfo, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots = append(h.snapshots, machines)
	h.listErrs = append(h.listErrs, err)
}

func (h *fakeHypervisor) ListMachines(context.Context) ([]model.MachineInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.snapshots) == 0 {
		return nil, errors.New("no snapshot")
	}
	i := h.calls
	if i >= len(h.snapshots) {
		i = len(h.snapshots) - 1
	}
	h.calls++
	return h.snapshots[i], h.listErrs[i]
}

func (h *fakeHypervisor) Start(ctx context.Context, name string) error {
	if h.startFn != nil {
		return h.startFn(ctx, name)
	}
	return nil
}

func (h *fakeHypervisor) Stop(ctx context.Context, name string) error {
	if h.stopFn != nil {
		return h.stopFn(ctx, name)
	}
	return nil
}

type dispatched struct {
	kind model.ActionKind
	name string
}

type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []dispatched
	failures chan model.Failure
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{failures: make(chan model.Failure, 8)}
}

func (d *fakeDispatcher) Dispatch(kind model.ActionKind, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatched{kind: kind, name: name})
}

func (d *fakeDispatcher) Failures() <-chan model.Failure {
	return d.failures
}

func (d *fakeDispatcher) dispatched() []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatched(nil), d.calls...)
}

var epoch = time.Now()

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(sec * float64(time.Second)))
}

func vm(name string, state model.PowerState, cpuSec float64, vcpus uint32, sampledAt time.Time) model.MachineInfo {
	return model.MachineInfo{
		Name:      name,
		State:     state,
		CPUTimeNs: uint64(cpuSec * float64(time.Second)),
		VCPUCount: vcpus,
		SampledAt: sampledAt,
	}
}
