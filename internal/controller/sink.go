package controller

import (
	"context"
	"errors"

	"kvm-dashboard/internal/model"
)

// ErrViewClosed is returned by a Sink whose consumer has gone away.
var ErrViewClosed = errors.New("view closed")

// Hypervisor is the synchronous client the controller polls and commands.
// Implementations must be safe for concurrent use: the Loop lists machines
// while dispatcher workers start and stop them.
type Hypervisor interface {
	ListMachines(ctx context.Context) ([]model.MachineInfo, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
}

// Sink consumes view-update events. Methods are only ever called from the
// Loop goroutine. A returned error means the view can no longer be reached
// and stops the Loop.
type Sink interface {
	Cleared() error
	VMAdded(name, label string, affordance model.Affordance) error
	VMRemoved(name string) error
	VMStateChanged(name, label string, affordance model.Affordance) error
	VMCPUUpdated(name string, rate model.CPURate) error
	ErrorShown(message string, fatal bool) error
	ConnectedTransition() error
}
