package config

import (
	"fmt"
	"strconv"
	"time"
)

type TOMLDuration time.Duration

func (d *TOMLDuration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = TOMLDuration(x)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d TOMLDuration) Value() time.Duration {
	return time.Duration(d)
}

// HexID is a USB vendor or product id written as hex string, e.g. "1e0e"
type HexID uint16

func (h *HexID) UnmarshalText(b []byte) error {
	val, err := strconv.ParseUint(string(b), 16, 16)
	if err != nil {
		return fmt.Errorf("invalid usb id %q: %w", string(b), err)
	}
	*h = HexID(val)
	return nil
}

func (h HexID) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h HexID) String() string {
	return fmt.Sprintf("%04x", uint16(h))
}
