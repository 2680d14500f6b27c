package stream

import (
	"time"

	"kvm-dashboard/internal/model"
)

type EventKind string

const (
	EventCleared   EventKind = "cleared"
	EventVMAdded   EventKind = "vm_added"
	EventVMRemoved EventKind = "vm_removed"
	EventVMState   EventKind = "vm_state"
	EventVMCPU     EventKind = "vm_cpu"
	EventError     EventKind = "error"
	EventConnected EventKind = "connected"
)

// Frame is one view event as sent on the export stream. CPURate is the
// utilisation fraction and is omitted when unknown.
type Frame struct {
	NodeID        string    `json:"node_id"`
	Seq           uint64    `json:"seq"`
	TimestampUnix int64     `json:"timestamp_unix"`
	Kind          EventKind `json:"kind"`
	VM            string    `json:"vm,omitempty"`
	State         string    `json:"state,omitempty"`
	Action        string    `json:"action,omitempty"`
	CPURate       *float64  `json:"cpu_rate,omitempty"`
	Message       string    `json:"message,omitempty"`
	Fatal         bool      `json:"fatal,omitempty"`
}

type frameBuilder struct {
	nodeID string
	now    func() time.Time
}

func (b frameBuilder) frame(kind EventKind) Frame {
	return Frame{NodeID: b.nodeID, TimestampUnix: b.now().UTC().Unix(), Kind: kind}
}

func (b frameBuilder) vmFrame(kind EventKind, name, label string, affordance model.Affordance) Frame {
	f := b.frame(kind)
	f.VM = name
	f.State = label
	f.Action = affordance.String()
	return f
}

func (b frameBuilder) cpuFrame(name string, rate model.CPURate) Frame {
	f := b.frame(EventVMCPU)
	f.VM = name
	if v, ok := rate.Value(); ok {
		f.CPURate = &v
	}
	return f
}

func (b frameBuilder) errorFrame(message string, fatal bool) Frame {
	f := b.frame(EventError)
	f.Message = message
	f.Fatal = fatal
	return f
}
