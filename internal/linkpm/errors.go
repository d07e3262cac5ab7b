package linkpm

import (
	"errors"
	"fmt"
	"time"

	"github.com/LeoCommon/linkpm/pkg/misc"
)

var (
	ErrClosed = errors.New("link power manager is closed")
)

// HardwareNotConfiguredError is returned if a capability like the port power function was never supplied
type HardwareNotConfiguredError struct {
	capability string
}

func (h *HardwareNotConfiguredError) Error() string {
	return fmt.Sprintf("%s not assigned", h.capability)
}

func (h *HardwareNotConfiguredError) Is(e error) bool {
	_, ok := e.(*HardwareNotConfiguredError)
	return ok
}

func NewHardwareNotConfiguredError(capability string) error {
	return &HardwareNotConfiguredError{capability}
}

// PowerTransitionFailedError is returned if the hub rejected a power request
type PowerTransitionFailedError struct {
	on  bool
	err error
}

func (p *PowerTransitionFailedError) Error() string {
	direction := "off"
	if p.on {
		direction = "on"
	}

	return fmt.Sprintf("hub power %s failed: %v", direction, p.err)
}

func (p *PowerTransitionFailedError) Is(e error) bool {
	_, ok := e.(*PowerTransitionFailedError)
	return ok
}

func (p *PowerTransitionFailedError) Unwrap() error {
	return p.err
}

func NewPowerTransitionFailedError(on bool, err error) error {
	return &PowerTransitionFailedError{on: on, err: err}
}

// ActivationTimedOutError is returned if the hub did not become active in time
type ActivationTimedOutError struct {
	timeout *misc.TimedOutError
}

func (a *ActivationTimedOutError) Error() string {
	return a.timeout.Error()
}

func (a *ActivationTimedOutError) Is(e error) bool {
	_, ok := e.(*ActivationTimedOutError)
	return ok
}

func (a *ActivationTimedOutError) Unwrap() error {
	return a.timeout
}

func NewActivationTimedOutError(after time.Duration) error {
	return &ActivationTimedOutError{misc.NewTimedOutError("hub activation timed out", after)}
}

type NoTransportAttachedError struct{}

func (n *NoTransportAttachedError) Error() string {
	return "no link transport attached"
}

func (n *NoTransportAttachedError) Is(e error) bool {
	_, ok := e.(*NoTransportAttachedError)
	return ok
}

func NewNoTransportAttachedError() error {
	return &NoTransportAttachedError{}
}
