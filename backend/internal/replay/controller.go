package replay

import "sync"

type State int

const (
	Running State = iota
	Paused
)

func (s State) String() string {
	if s == Paused {
		return "paused"
	}
	return "running"
}

// PlaybackListener is told about pause/resume transitions after they happen.
type PlaybackListener interface {
	PlaybackPaused()
	PlaybackResumed()
}

// Controller gates the dispatcher and tracks the furthest step reached, which
// the UI uses to keep annotations from running ahead of the buffer.
type Controller struct {
	mu        sync.Mutex
	state     State
	step      int
	listeners []PlaybackListener
}

func NewController() *Controller {
	return &Controller{}
}

func (c *Controller) AddListener(l PlaybackListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Pause stops the next operation from starting. The in-flight one, if any,
// still runs to completion. It reports whether the state changed.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	if c.state == Paused {
		c.mu.Unlock()
		return false
	}
	c.state = Paused
	ls := append([]PlaybackListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range ls {
		l.PlaybackPaused()
	}
	return true
}

// Resume reopens the gate and re-triggers dispatch.
func (c *Controller) Resume() bool {
	c.mu.Lock()
	if c.state == Running {
		c.mu.Unlock()
		return false
	}
	c.state = Running
	ls := append([]PlaybackListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range ls {
		l.PlaybackResumed()
	}
	return true
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Paused() bool { return c.State() == Paused }

// CurrentStep is the highest step observed so far.
func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// ObserveStep raises the furthest step; lower values are ignored.
func (c *Controller) ObserveStep(step int) {
	c.mu.Lock()
	if step > c.step {
		c.step = step
	}
	c.mu.Unlock()
}
