package controller

import (
	"log/slog"

	"kvm-dashboard/internal/model"
)

// LogSink writes every event to a structured logger. It backs the headless
// watch mode.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Cleared() error {
	s.logger.Info("vm list cleared")
	return nil
}

func (s *LogSink) VMAdded(name, label string, affordance model.Affordance) error {
	s.logger.Info("vm added", "vm", name, "state", label, "action", affordance.String())
	return nil
}

func (s *LogSink) VMRemoved(name string) error {
	s.logger.Info("vm removed", "vm", name)
	return nil
}

func (s *LogSink) VMStateChanged(name, label string, affordance model.Affordance) error {
	s.logger.Info("vm state changed", "vm", name, "state", label, "action", affordance.String())
	return nil
}

func (s *LogSink) VMCPUUpdated(name string, rate model.CPURate) error {
	s.logger.Debug("vm cpu", "vm", name, "cpu", rate.String())
	return nil
}

func (s *LogSink) ErrorShown(message string, fatal bool) error {
	if fatal {
		s.logger.Error("fatal error", "error", message)
		return nil
	}
	s.logger.Warn("error", "error", message)
	return nil
}

func (s *LogSink) ConnectedTransition() error {
	s.logger.Info("connected to hypervisor")
	return nil
}
