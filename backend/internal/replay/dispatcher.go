package replay

import (
	"context"
	"sync"
)

// DispatchHooks observe the dispatch loop. Both run on the dispatch goroutine;
// OnComplete fires before the next operation may be dequeued.
type DispatchHooks struct {
	OnStart    func(op Operation)
	OnComplete func(res Result)
}

// Dispatcher is the single consumer of a Queue. The in-flight flag is
// checked and set under mu together with the pause gate and queue length, so
// at most one operation is ever being applied.
type Dispatcher struct {
	queue  *Queue
	engine *Engine
	ctrl   *Controller
	hooks  DispatchHooks

	mu        sync.Mutex
	inFlight  bool
	current   Operation
	processed int

	wake chan struct{}
}

func NewDispatcher(queue *Queue, engine *Engine, ctrl *Controller, hooks DispatchHooks) *Dispatcher {
	d := &Dispatcher{
		queue:  queue,
		engine: engine,
		ctrl:   ctrl,
		hooks:  hooks,
		wake:   make(chan struct{}, 1),
	}
	ctrl.AddListener(d)
	return d
}

// Enqueue appends ops in order and wakes the loop.
func (d *Dispatcher) Enqueue(ops ...Operation) {
	if len(ops) == 0 {
		return
	}
	d.queue.Push(ops...)
	d.Kick()
}

// Kick asks the loop to re-check the dequeue conditions. It never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) PlaybackPaused()  {}
func (d *Dispatcher) PlaybackResumed() { d.Kick() }

// Run drains the queue until ctx is done. Extra Run loops on the same
// dispatcher are harmless: the in-flight flag still admits one operation.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		for ctx.Err() == nil {
			op, ok := d.next()
			if !ok {
				break
			}
			if d.hooks.OnStart != nil {
				d.hooks.OnStart(op)
			}
			res := d.engine.Apply(ctx, op)
			d.finish(res)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) next() (Operation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight || d.ctrl.Paused() {
		return Operation{}, false
	}
	op, ok := d.queue.Pop()
	if !ok {
		return Operation{}, false
	}
	d.inFlight = true
	d.current = op
	d.ctrl.ObserveStep(op.Step)
	return op, true
}

func (d *Dispatcher) finish(res Result) {
	if d.hooks.OnComplete != nil {
		d.hooks.OnComplete(res)
	}
	d.mu.Lock()
	d.inFlight = false
	d.current = Operation{}
	d.processed++
	d.mu.Unlock()
}

func (d *Dispatcher) InFlight() (Operation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.inFlight
}

// Processed counts completed operations.
func (d *Dispatcher) Processed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processed
}

// Idle reports that nothing is in flight and nothing is queued.
func (d *Dispatcher) Idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.inFlight && d.queue.Len() == 0
}
