package view

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"kvm-dashboard/internal/controller"
	"kvm-dashboard/internal/model"
)

// Sender is the part of *tea.Program the sink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink forwards loop events into a running program. Once Close has been
// called every method returns controller.ErrViewClosed.
type Sink struct {
	sender Sender
	closed atomic.Bool
}

var _ controller.Sink = (*Sink)(nil)

func NewSink(sender Sender) *Sink {
	return &Sink{sender: sender}
}

// Close marks the program as gone. Call it after Program.Run returns.
func (s *Sink) Close() {
	s.closed.Store(true)
}

func (s *Sink) send(msg tea.Msg) error {
	if s.closed.Load() {
		return controller.ErrViewClosed
	}
	s.sender.Send(msg)
	return nil
}

func (s *Sink) Cleared() error {
	return s.send(clearedMsg{})
}

func (s *Sink) VMAdded(name, label string, affordance model.Affordance) error {
	return s.send(vmAddedMsg{name: name, label: label, affordance: affordance})
}

func (s *Sink) VMRemoved(name string) error {
	return s.send(vmRemovedMsg{name: name})
}

func (s *Sink) VMStateChanged(name, label string, affordance model.Affordance) error {
	return s.send(vmStateMsg{name: name, label: label, affordance: affordance})
}

func (s *Sink) VMCPUUpdated(name string, rate model.CPURate) error {
	return s.send(vmCPUMsg{name: name, rate: rate})
}

func (s *Sink) ErrorShown(message string, fatal bool) error {
	return s.send(errorMsg{message: message, fatal: fatal})
}

func (s *Sink) ConnectedTransition() error {
	return s.send(connectedMsg{})
}
