// Package usblink tracks the USB link to the modem and controls its runtime
// power management.
package usblink

import (
	"sync"
	"time"

	"github.com/LeoCommon/linkpm/internal/platform/runtimepm"
	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/google/gousb"
	"go.uber.org/zap"
)

// Link is the modem side of the USB connection
type Link struct {
	lock     sync.Mutex
	bus      bus
	vid, pid gousb.ID
	dev      *runtimepm.Device
	attached bool

	retries chan struct{}
}

// New creates the link for the modem with the given ids, dev may be nil if
// the modem sysfs directory is unknown.
func New(vid, pid gousb.ID, dev *runtimepm.Device) *Link {
	return newLink(libusb{}, vid, pid, dev)
}

func newLink(b bus, vid, pid gousb.ID, dev *runtimepm.Device) *Link {
	return &Link{
		bus:     b,
		vid:     vid,
		pid:     pid,
		dev:     dev,
		retries: make(chan struct{}, 1),
	}
}

func (l *Link) String() string {
	return l.vid.String() + ":" + l.pid.String()
}

// Matches reports whether vid and pid belong to the modem
func (l *Link) Matches(vid, pid uint16) bool {
	return gousb.ID(vid) == l.vid && gousb.ID(pid) == l.pid
}

// Probe checks if the modem is enumerated right now
func (l *Link) Probe() bool {
	present, err := l.bus.Present(l.vid, l.pid)
	if err != nil {
		log.Error("error while probing usb devices", zap.String("modem", l.String()), zap.Error(err))
	}

	l.SetAttached(present)
	return present
}

// SetAttached is fed by hotplug events
func (l *Link) SetAttached(attached bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.attached != attached {
		log.Info("modem link changed", zap.String("modem", l.String()), zap.Bool("attached", attached))
	}
	l.attached = attached
}

func (l *Link) Attached() bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.attached
}

// ForceDisconnect resets the modem port, used right before the modem reboots
func (l *Link) ForceDisconnect() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.bus.Reset(l.vid, l.pid); err != nil {
		log.Error("resetting usb device failed", zap.String("modem", l.String()), zap.Error(err))
		return err
	}

	// The unbind uevent would do the same, do not wait for it
	l.attached = false
	return nil
}

// EnqueueRetry signals that the pending transfer should be retried once the
// link is back. Multiple signals collapse into one.
func (l *Link) EnqueueRetry() {
	select {
	case l.retries <- struct{}{}:
	default:
	}
}

// Retries delivers the collapsed retry requests
func (l *Link) Retries() <-chan struct{} {
	return l.retries
}

// MakeResume wakes the modem device up if it is runtime suspended
func (l *Link) MakeResume() {
	if l.dev == nil {
		return
	}

	if err := l.dev.Resume(false); err != nil {
		log.Warn("could not resume modem", zap.String("modem", l.String()), zap.Error(err))
	}
}

func (l *Link) ForbidAutosuspend() error {
	if l.dev == nil {
		return &NotConfiguredError{}
	}

	return l.dev.SetControl(runtimepm.ControlOn)
}

func (l *Link) AllowAutosuspend(delay time.Duration) error {
	if l.dev == nil {
		return &NotConfiguredError{}
	}

	if err := l.dev.SetAutosuspendDelay(delay); err != nil {
		return err
	}

	return l.dev.SetControl(runtimepm.ControlAuto)
}
