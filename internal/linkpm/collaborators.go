package linkpm

import (
	"context"
	"time"
)

// LineID identifies a discrete signal line, its meaning depends on the SignalLines backend
type LineID string

// SignalLines drives and samples the wake/active lines between host and modem.
// Implementations must be safe for concurrent use.
type SignalLines interface {
	Set(line LineID, high bool) error
	Get(line LineID) (bool, error)
}

// PortPowerFunc switches the power of the hub port
type PortPowerFunc func(ctx context.Context, on bool) error

// RootHub is the parent bus device of the hub. It is never owned by the manager.
type RootHub interface {
	// Acquire takes a runtime reference and resumes the bus synchronously
	Acquire() error
	// Release drops a reference taken with Acquire
	Release() error
	// Resume wakes the bus without taking a reference
	Resume() error
	ForbidAutosuspend() error
	AllowAutosuspend() error
}

// Transport is the data link to the modem that runs behind the hub
type Transport interface {
	Attached() bool
	ForceDisconnect() error
	// EnqueueRetry kicks the transmit path so pending data is retried
	EnqueueRetry()
	// MakeResume tells the transport that the resume handshake completed
	MakeResume()
	ForbidAutosuspend() error
	AllowAutosuspend(delay time.Duration) error
}

// SuspendBlocker keeps the system from suspending while the hub powers up
type SuspendBlocker interface {
	Acquire() error
	Release() error
}

// PowerListener receives system suspend transitions
type PowerListener interface {
	OnSuspendPrepare()
	OnPostResume()
}

// PowerNotifier delivers system suspend transitions to registered listeners
type PowerNotifier interface {
	Register(l PowerListener)
	Unregister(l PowerListener)
}

// Recorder collects metrics about the hub machine, label values are plain strings
type Recorder interface {
	IncTransition(from, to string)
	IncRetryTick()
	IncAbandoned()
	IncPowerFailure(direction string)
	ObserveActivation(result string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) IncTransition(string, string)            {}
func (noopRecorder) IncRetryTick()                           {}
func (noopRecorder) IncAbandoned()                           {}
func (noopRecorder) IncPowerFailure(string)                  {}
func (noopRecorder) ObserveActivation(string, time.Duration) {}

type noopBlocker struct{}

func (noopBlocker) Acquire() error { return nil }
func (noopBlocker) Release() error { return nil }
