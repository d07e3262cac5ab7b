package lines

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type fakePort struct {
	dtr, rts bool
	bits     serial.ModemStatusBits
	err      error
	closed   bool
}

func (f *fakePort) SetDTR(dtr bool) error {
	f.dtr = dtr
	return f.err
}

func (f *fakePort) SetRTS(rts bool) error {
	f.rts = rts
	return f.err
}

func (f *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	if f.err != nil {
		return nil, f.err
	}
	bits := f.bits
	return &bits, nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestSerialOutputs(t *testing.T) {
	port := &fakePort{}
	s := newSerial(port)

	require.NoError(t, s.Set(DTR, true))
	require.NoError(t, s.Set(RTS, false))
	assert.True(t, port.dtr)
	assert.False(t, port.rts)

	level, err := s.Get(DTR)
	require.NoError(t, err)
	assert.True(t, level)

	assert.ErrorIs(t, s.Set(RI, true), &UnknownLineError{})
	assert.ErrorIs(t, s.Set("gpio3", true), &UnknownLineError{})

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
}

func TestSerialInputs(t *testing.T) {
	port := &fakePort{bits: serial.ModemStatusBits{RI: true, CTS: false, DCD: true}}
	s := newSerial(port)

	level, err := s.Get(RI)
	require.NoError(t, err)
	assert.True(t, level)

	level, err = s.Get(CTS)
	require.NoError(t, err)
	assert.False(t, level)

	level, err = s.Get(DCD)
	require.NoError(t, err)
	assert.True(t, level)

	_, err = s.Get("bogus")
	assert.ErrorIs(t, err, &UnknownLineError{})

	port.err = errors.New("io error")
	_, err = s.Get(RI)
	assert.Error(t, err)
}

func TestSerialFailedSetIsNotCached(t *testing.T) {
	port := &fakePort{err: errors.New("io error")}
	s := newSerial(port)

	assert.Error(t, s.Set(DTR, true))
	level, err := s.Get(DTR)
	require.NoError(t, err)
	assert.False(t, level)
}
