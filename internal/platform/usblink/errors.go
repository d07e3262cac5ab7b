package usblink

import (
	"fmt"

	"github.com/google/gousb"
)

type VanishedError struct {
	vid, pid gousb.ID
}

func (v *VanishedError) Error() string {
	return fmt.Sprintf("device %s:%s disappeared", v.vid, v.pid)
}

func (v *VanishedError) Is(e error) bool {
	_, ok := e.(*VanishedError)
	return ok
}

func NewVanishedError(vid, pid gousb.ID) error {
	return &VanishedError{vid, pid}
}

type NotConfiguredError struct{}

func (n *NotConfiguredError) Error() string {
	return "modem runtime pm device not configured"
}

func (n *NotConfiguredError) Is(e error) bool {
	_, ok := e.(*NotConfiguredError)
	return ok
}
