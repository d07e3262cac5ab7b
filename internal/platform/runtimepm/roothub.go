package runtimepm

import (
	"errors"
	"sync"

	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

var ErrUnbalancedRelease = errors.New("root hub released more often than acquired")

// RootHub keeps the host controller root hub awake while references are
// held, comparable to a usage count on the device.
type RootHub struct {
	lock      sync.Mutex
	dev       *Device
	refs      int
	forbidden bool
}

func NewRootHub(dev *Device) *RootHub {
	return &RootHub{dev: dev}
}

// Acquire takes a reference, the first one resumes the root hub
func (r *RootHub) Acquire() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.refs++
	if r.refs > 1 {
		return nil
	}

	if err := r.dev.SetControl(ControlOn); err != nil {
		r.refs--
		return err
	}

	log.Debug("root hub held", zap.String("device", r.dev.Path()))
	return nil
}

// Release drops a reference, the last one allows the root hub to suspend again
func (r *RootHub) Release() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.refs == 0 {
		return ErrUnbalancedRelease
	}

	r.refs--
	if r.refs > 0 || r.forbidden {
		return nil
	}

	log.Debug("root hub released", zap.String("device", r.dev.Path()))
	return r.dev.SetControl(ControlAuto)
}

func (r *RootHub) Resume() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.dev.Resume(r.refs > 0 || r.forbidden)
}

func (r *RootHub) ForbidAutosuspend() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.forbidden = true
	return r.dev.SetControl(ControlOn)
}

func (r *RootHub) AllowAutosuspend() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.forbidden = false
	if r.refs > 0 {
		return nil
	}

	return r.dev.SetControl(ControlAuto)
}

// References returns the amount of held references
func (r *RootHub) References() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.refs
}
