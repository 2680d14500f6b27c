package model

// PowerState is the lifecycle state the hypervisor reports for a domain.
type PowerState uint8

const (
	StateNoState PowerState = iota
	StateRunning
	StateBlocked
	StatePaused
	StateShuttingDown
	StateOff
	StateCrashed
	StateSuspended
	StateUnknown
)

// AllPowerStates lists every PowerState in declaration order.
var AllPowerStates = []PowerState{
	StateNoState,
	StateRunning,
	StateBlocked,
	StatePaused,
	StateShuttingDown,
	StateOff,
	StateCrashed,
	StateSuspended,
	StateUnknown,
}

// PowerStateFromCode maps a libvirt virDomainState code. Codes outside the
// known range map to StateUnknown.
func PowerStateFromCode(code uint32) PowerState {
	if code < uint32(StateUnknown) {
		return PowerState(code)
	}
	return StateUnknown
}

// Label returns the operator-facing name of the state.
func (s PowerState) Label() string {
	switch s {
	case StateNoState:
		return "No state"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StatePaused:
		return "Paused"
	case StateShuttingDown:
		return "Shutting down"
	case StateOff:
		return "Off"
	case StateCrashed:
		return "Crashed"
	case StateSuspended:
		return "Suspended"
	case StateUnknown:
		return "Unknown"
	}
	return "Unknown"
}

func (s PowerState) String() string {
	return s.Label()
}

// Affordance derives the action an operator may take on a machine in state s.
// It is never stored; callers recompute it on every observation.
func (s PowerState) Affordance() Affordance {
	switch s {
	case StateOff:
		return AffordanceStart
	case StateRunning:
		return AffordanceStop
	case StateNoState, StateBlocked, StatePaused, StateShuttingDown,
		StateCrashed, StateSuspended, StateUnknown:
		return AffordanceNone
	}
	return AffordanceNone
}

// Affordance is the single action button a VM row offers.
type Affordance uint8

const (
	AffordanceNone Affordance = iota
	AffordanceStart
	AffordanceStop
)

func (a Affordance) String() string {
	switch a {
	case AffordanceStart:
		return "Start"
	case AffordanceStop:
		return "Stop"
	default:
		return ""
	}
}

// Action returns the command that pressing the affordance issues for name.
// ok is false for AffordanceNone.
func (a Affordance) Action(name string) (Action, bool) {
	switch a {
	case AffordanceStart:
		return StartAction(name), true
	case AffordanceStop:
		return StopAction(name), true
	default:
		return Action{}, false
	}
}
