package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var ErrDispatcherClosed = errors.New("DISPATCHER_CLOSED")

// Dispatcher：本地有界队列 + worker 异步投递 + 有限重试。
// - 回放主链路只负责入队，不等待 sink
// - sink 短暂不可用时靠队列吸收，后台补发
// - 重试耗尽后丢弃并记日志，事件不要求必达
type Dispatcher struct {
	name string
	sink Sink

	queue chan Event
	sem   *SemaphoreControl

	workers     int
	maxRetry    int
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOptions struct {
	QueueSize   int
	Workers     int
	MaxRetry    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (o DispatcherOptions) withDefaults() DispatcherOptions {
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.MaxRetry < 0 {
		o.MaxRetry = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 50 * time.Millisecond
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = o.BaseBackoff
	}
	return o
}

func NewDispatcher(name string, sink Sink, sem *SemaphoreControl, opt DispatcherOptions) *Dispatcher {
	opt = opt.withDefaults()
	d := &Dispatcher{
		name:        name,
		sink:        sink,
		queue:       make(chan Event, opt.QueueSize),
		sem:         sem,
		workers:     opt.Workers,
		maxRetry:    opt.MaxRetry,
		baseBackoff: opt.BaseBackoff,
		maxBackoff:  opt.MaxBackoff,
	}
	d.start()
	return d
}

// Enqueue 把事件放入本地队列，队列满时等待直到 ctx 结束。
func (d *Dispatcher) Enqueue(ctx context.Context, evt Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止接收新事件，并等待已入队事件投递完毕。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(i)
	}
}

func (d *Dispatcher) workerLoop(workerID int) {
	defer d.wg.Done()
	for evt := range d.queue {
		d.sendWithRetry(workerID, evt)
	}
}

func (d *Dispatcher) sendWithRetry(workerID int, evt Event) {
	for attempt := 0; attempt <= d.maxRetry; attempt++ {
		if d.sem != nil {
			// worker 可以一直等，不影响回放
			_ = d.sem.Acquire(context.Background())
		}

		err := d.sink.Publish(context.Background(), evt)

		if d.sem != nil {
			_ = d.sem.Release()
		}

		if err == nil {
			return
		}

		if attempt == d.maxRetry {
			log.Printf("%s publish failed, drop event type=%s session=%s step=%d worker=%d err=%v",
				d.name, evt.EventType, evt.SessionID, evt.Step, workerID, err)
			return
		}

		// 退避，每次 x2
		backoff := d.baseBackoff * time.Duration(1<<attempt)
		if backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}
		time.Sleep(backoff)
	}
}
