package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingListener struct {
	paused, resumed int
}

func (c *countingListener) PlaybackPaused()  { c.paused++ }
func (c *countingListener) PlaybackResumed() { c.resumed++ }

func TestController_PauseResumeTransitions(t *testing.T) {
	c := NewController()
	l := &countingListener{}
	c.AddListener(l)

	assert.Equal(t, Running, c.State())
	assert.Equal(t, "running", c.State().String())
	assert.False(t, c.Resume())

	assert.True(t, c.Pause())
	assert.False(t, c.Pause())
	assert.True(t, c.Paused())
	assert.Equal(t, "paused", c.State().String())

	assert.True(t, c.Resume())
	assert.False(t, c.Paused())

	assert.Equal(t, 1, l.paused)
	assert.Equal(t, 1, l.resumed)
}

func TestController_ObserveStepIsMonotonic(t *testing.T) {
	c := NewController()
	assert.Equal(t, 0, c.CurrentStep())
	c.ObserveStep(3)
	c.ObserveStep(1)
	assert.Equal(t, 3, c.CurrentStep())
	c.ObserveStep(4)
	assert.Equal(t, 4, c.CurrentStep())
}
