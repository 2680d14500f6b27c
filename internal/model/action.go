package model

import "fmt"

// ActionKind enumerates the commands a view can send to the controller.
type ActionKind uint8

const (
	ActionRefresh ActionKind = iota
	ActionStart
	ActionStop
)

func (k ActionKind) String() string {
	switch k {
	case ActionRefresh:
		return "refresh"
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

// Action is the only way a view communicates intent to the controller.
// VM is empty for ActionRefresh.
type Action struct {
	Kind ActionKind
	VM   string
}

func RefreshAction() Action {
	return Action{Kind: ActionRefresh}
}

func StartAction(name string) Action {
	return Action{Kind: ActionStart, VM: name}
}

func StopAction(name string) Action {
	return Action{Kind: ActionStop, VM: name}
}

func (a Action) String() string {
	if a.Kind == ActionRefresh {
		return a.Kind.String()
	}
	return a.Kind.String() + " " + a.VM
}
