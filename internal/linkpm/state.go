package linkpm

import "fmt"

type HubState int

const (
	HubOff HubState = iota
	HubResuming
	HubPreactive
	HubActive
)

func (s HubState) String() string {
	switch s {
	case HubOff:
		return "off"
	case HubResuming:
		return "resuming"
	case HubPreactive:
		return "preactive"
	case HubActive:
		return "active"
	default:
		return fmt.Sprintf("HubState(%d)", int(s))
	}
}

// validTransition lists the only edges the hub machine may take.
// Any state may fall back to off, resuming may loop on itself while polling.
func validTransition(from, to HubState) bool {
	if to == HubOff {
		return true
	}

	switch from {
	case HubOff:
		return to == HubResuming
	case HubResuming:
		return to == HubResuming || to == HubPreactive
	case HubPreactive:
		return to == HubActive
	}

	return false
}

type ActivationResult int

const (
	Activated ActivationResult = iota
	TimedOut
)

func (r ActivationResult) String() string {
	if r == Activated {
		return "activated"
	}

	return "timed_out"
}

// Status is a snapshot of the manager state
type Status struct {
	State             HubState
	HubPresent        bool
	RetryCount        int
	InitLock          bool
	HandshakeDone     bool
	SuspendInProgress bool
	BlockAutosuspend  bool
	RootHubHeld       bool
	Connected         bool
	LastError         string
}
