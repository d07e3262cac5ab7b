package linkpm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestCompletionReleasesAllWaiters(t *testing.T) {
	c := newCompletion()

	a := c.arm()
	b := c.arm()
	assert.False(t, closed(a))

	c.complete()
	c.complete()
	assert.True(t, closed(a))
	assert.True(t, closed(b))
}

func TestCompletionRearm(t *testing.T) {
	c := newCompletion()

	first := c.arm()
	c.complete()

	second := c.arm()
	assert.True(t, closed(first))
	assert.False(t, closed(second), "a new cycle must not see the previous signal")

	c.complete()
	assert.True(t, closed(second))
}
