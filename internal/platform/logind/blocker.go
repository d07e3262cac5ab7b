package logind

import (
	"io"
	"sync"
)

// Blocker keeps the system from suspending while the hub powers up
type Blocker struct {
	lock    sync.Mutex
	inhibit inhibitor
	who     string
	held    io.Closer
}

func (b *Blocker) Acquire() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.held != nil {
		return nil
	}

	lock, err := b.inhibit.Inhibit(InhibitSleep, b.who, "hub power up in progress", ModeBlock)
	if err != nil {
		return err
	}
	b.held = lock
	return nil
}

func (b *Blocker) Release() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.held == nil {
		return nil
	}

	err := b.held.Close()
	b.held = nil
	return err
}
