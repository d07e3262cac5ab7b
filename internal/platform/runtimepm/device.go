// Package runtimepm talks to the kernel runtime power management of USB
// devices through their sysfs power directory.
package runtimepm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ControlOn   = "on"
	ControlAuto = "auto"
)

// Device is a sysfs device directory like /sys/bus/usb/devices/usb1
type Device struct {
	path string
}

func NewDevice(path string) *Device {
	return &Device{path: path}
}

func (d *Device) Path() string {
	return d.path
}

func (d *Device) attribute(name string) string {
	return filepath.Join(d.path, "power", name)
}

func (d *Device) read(name string) (string, error) {
	data, err := os.ReadFile(d.attribute(name))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

func (d *Device) write(name, value string) error {
	if err := os.WriteFile(d.attribute(name), []byte(value), 0); err != nil {
		return fmt.Errorf("write %s=%s: %w", name, value, err)
	}
	return nil
}

// Control returns "on" if runtime suspend is forbidden, "auto" otherwise
func (d *Device) Control() (string, error) {
	return d.read("control")
}

func (d *Device) SetControl(value string) error {
	if value != ControlOn && value != ControlAuto {
		return fmt.Errorf("invalid power control %q", value)
	}

	return d.write("control", value)
}

// RuntimeStatus is one of active, suspended, suspending, resuming or unsupported
func (d *Device) RuntimeStatus() (string, error) {
	return d.read("runtime_status")
}

func (d *Device) SetAutosuspendDelay(delay time.Duration) error {
	return d.write("autosuspend_delay_ms", strconv.FormatInt(delay.Milliseconds(), 10))
}

func (d *Device) AutosuspendDelay() (time.Duration, error) {
	value, err := d.read("autosuspend_delay_ms")
	if err != nil {
		return 0, err
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}

	return time.Duration(ms) * time.Millisecond, nil
}

// Resume wakes the device by forbidding runtime suspend, afterwards the
// previous control value is restored unless keep is set.
func (d *Device) Resume(keep bool) error {
	previous, err := d.Control()
	if err != nil {
		return err
	}

	if err := d.SetControl(ControlOn); err != nil {
		return err
	}

	if keep || previous == ControlOn {
		return nil
	}

	return d.SetControl(previous)
}
