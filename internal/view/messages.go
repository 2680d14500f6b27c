package view

import (
	"time"

	"kvm-dashboard/internal/model"
)

type clearedMsg struct{}

type vmAddedMsg struct {
	name       string
	label      string
	affordance model.Affordance
}

type vmRemovedMsg struct {
	name string
}

type vmStateMsg struct {
	name       string
	label      string
	affordance model.Affordance
}

type vmCPUMsg struct {
	name string
	rate model.CPURate
}

type errorMsg struct {
	message string
	fatal   bool
}

type connectedMsg struct{}

// tickMsg requests a periodic refresh.
type tickMsg time.Time
