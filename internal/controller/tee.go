package controller

import (
	"log/slog"

	"kvm-dashboard/internal/model"
)

type teeSink struct {
	logger  *slog.Logger
	primary Sink
	mirrors []Sink
}

// Tee fans every event out to primary and mirrors. Only primary errors are
// returned; a failing mirror is logged and otherwise ignored.
func Tee(logger *slog.Logger, primary Sink, mirrors ...Sink) Sink {
	if len(mirrors) == 0 {
		return primary
	}
	return &teeSink{logger: logger, primary: primary, mirrors: mirrors}
}

func (t *teeSink) each(event string, fn func(Sink) error) error {
	err := fn(t.primary)
	for _, m := range t.mirrors {
		if mErr := fn(m); mErr != nil {
			t.logger.Warn("mirror sink failed", "event", event, "error", mErr)
		}
	}
	return err
}

func (t *teeSink) Cleared() error {
	return t.each("cleared", func(s Sink) error { return s.Cleared() })
}

func (t *teeSink) VMAdded(name, label string, affordance model.Affordance) error {
	return t.each("vm_added", func(s Sink) error { return s.VMAdded(name, label, affordance) })
}

func (t *teeSink) VMRemoved(name string) error {
	return t.each("vm_removed", func(s Sink) error { return s.VMRemoved(name) })
}

func (t *teeSink) VMStateChanged(name, label string, affordance model.Affordance) error {
	return t.each("vm_state", func(s Sink) error { return s.VMStateChanged(name, label, affordance) })
}

func (t *teeSink) VMCPUUpdated(name string, rate model.CPURate) error {
	return t.each("vm_cpu", func(s Sink) error { return s.VMCPUUpdated(name, rate) })
}

func (t *teeSink) ErrorShown(message string, fatal bool) error {
	return t.each("error", func(s Sink) error { return s.ErrorShown(message, fatal) })
}

func (t *teeSink) ConnectedTransition() error {
	return t.each("connected", func(s Sink) error { return s.ConnectedTransition() })
}
