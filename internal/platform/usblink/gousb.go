package usblink

import (
	"github.com/google/gousb"
)

// bus is the part of libusb the link needs
type bus interface {
	Present(vid, pid gousb.ID) (bool, error)
	Reset(vid, pid gousb.ID) error
}

type libusb struct{}

// Present opens and closes the device once to check it is enumerated
func (libusb) Present(vid, pid gousb.ID) (bool, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if dev == nil {
		return false, err
	}

	dev.Close()
	return true, err
}

// Reset issues a USB port reset, the device reenumerates afterwards
func (libusb) Reset(vid, pid gousb.ID) error {
	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, _ := ctx.OpenDeviceWithVIDPID(vid, pid)
	if dev == nil {
		return NewVanishedError(vid, pid)
	}
	defer dev.Close()

	return dev.Reset()
}
