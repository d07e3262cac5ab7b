// Package lines drives the sideband signal lines between host and modem,
// either through the modem control lines of a USB serial adapter or sysfs GPIOs.
package lines

import (
	"fmt"
	"sync"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"github.com/LeoCommon/linkpm/pkg/log"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Modem control lines of a serial port. DTR and RTS are outputs, the rest inputs.
const (
	DTR linkpm.LineID = "dtr"
	RTS linkpm.LineID = "rts"
	CTS linkpm.LineID = "cts"
	DSR linkpm.LineID = "dsr"
	RI  linkpm.LineID = "ri"
	DCD linkpm.LineID = "dcd"
)

// controlPort is the part of serial.Port the line driver needs
type controlPort interface {
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	Close() error
}

type UnknownLineError struct {
	line linkpm.LineID
}

func (u *UnknownLineError) Error() string {
	return fmt.Sprintf("unknown signal line %q", string(u.line))
}

func (u *UnknownLineError) Is(e error) bool {
	_, ok := e.(*UnknownLineError)
	return ok
}

func NewUnknownLineError(line linkpm.LineID) error {
	return &UnknownLineError{line}
}

// Serial maps the signal lines onto the modem control lines of a tty
type Serial struct {
	lock sync.Mutex
	port controlPort

	// outputs keeps the last level driven, the port can not read them back
	outputs map[linkpm.LineID]bool
}

// OpenSerial opens the tty at device, baud rate is irrelevant for the control lines
func OpenSerial(device string) (*Serial, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: 115200})
	if err != nil {
		log.Error("error while opening serial device", zap.String("device", device), zap.Error(err))
		return nil, err
	}

	return newSerial(port), nil
}

func newSerial(port controlPort) *Serial {
	return &Serial{
		port:    port,
		outputs: make(map[linkpm.LineID]bool),
	}
}

func (s *Serial) Set(line linkpm.LineID, high bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	var err error
	switch line {
	case DTR:
		err = s.port.SetDTR(high)
	case RTS:
		err = s.port.SetRTS(high)
	default:
		return NewUnknownLineError(line)
	}

	if err != nil {
		return fmt.Errorf("set %s: %w", line, err)
	}

	s.outputs[line] = high
	return nil
}

func (s *Serial) Get(line linkpm.LineID) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if level, ok := s.outputs[line]; ok {
		return level, nil
	}
	if line == DTR || line == RTS {
		return false, nil
	}

	bits, err := s.port.GetModemStatusBits()
	if err != nil {
		return false, fmt.Errorf("get %s: %w", line, err)
	}

	switch line {
	case CTS:
		return bits.CTS, nil
	case DSR:
		return bits.DSR, nil
	case RI:
		return bits.RI, nil
	case DCD:
		return bits.DCD, nil
	}

	return false, NewUnknownLineError(line)
}

func (s *Serial) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.port.Close()
}
