package linkpm

import "sync"

// completion is a re-armable one-shot signal. Every waiter of the current
// cycle is released by a single complete call.
type completion struct {
	mu   sync.Mutex
	ch   chan struct{}
	done bool
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{})}
}

// arm returns the channel of the current cycle. A completed cycle is replaced
// by a fresh one so a waiter never observes a stale signal.
func (c *completion) arm() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		c.ch = make(chan struct{})
		c.done = false
	}

	return c.ch
}

func (c *completion) complete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return
	}

	close(c.ch)
	c.done = true
}
