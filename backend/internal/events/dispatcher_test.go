package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []Event
	failures int32 // 前 n 次调用失败
	calls    int32
}

func (r *recordingSink) Publish(_ context.Context, evt Event) error {
	n := atomic.AddInt32(&r.calls, 1)
	if n <= atomic.LoadInt32(&r.failures) {
		return errors.New("broker unavailable")
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) got() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func fastOptions() DispatcherOptions {
	return DispatcherOptions{QueueSize: 8, Workers: 1, MaxRetry: 3, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestDispatcher_RetriesThenDelivers(t *testing.T) {
	sink := &recordingSink{failures: 2}
	d := NewDispatcher("test", sink, NewSemaphoreControl(1), fastOptions())

	require.NoError(t, d.Enqueue(context.Background(), Event{EventType: TypePrint, Step: 1}))
	d.Close()

	got := sink.got()
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Step)
	assert.EqualValues(t, 3, atomic.LoadInt32(&sink.calls))
}

func TestDispatcher_DropsAfterMaxRetry(t *testing.T) {
	sink := &recordingSink{failures: 100}
	d := NewDispatcher("test", sink, nil, fastOptions())

	require.NoError(t, d.Enqueue(context.Background(), Event{EventType: TypePrint}))
	d.Close()

	assert.Empty(t, sink.got())
	assert.EqualValues(t, 4, atomic.LoadInt32(&sink.calls))
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	sink := &recordingSink{}
	opt := fastOptions()
	opt.Workers = 3
	opt.QueueSize = 64
	d := NewDispatcher("test", sink, NewSemaphoreControl(2), opt)

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Enqueue(context.Background(), Event{Step: i}))
	}
	d.Close()
	d.Close()

	assert.Len(t, sink.got(), 50)
	assert.ErrorIs(t, d.Enqueue(context.Background(), Event{}), ErrDispatcherClosed)
}

func TestDispatcher_EnqueueWaitsForContext(t *testing.T) {
	block := make(chan struct{})
	sink := SinkFunc(func(context.Context, Event) error {
		<-block
		return nil
	})
	d := NewDispatcher("test", sink, nil, DispatcherOptions{QueueSize: 1, Workers: 1})
	defer func() {
		close(block)
		d.Close()
	}()

	// worker 占住一个，队列再放一个，之后就满了
	require.NoError(t, d.Enqueue(context.Background(), Event{Step: 1}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Enqueue(context.Background(), Event{Step: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Enqueue(ctx, Event{Step: 3}), context.DeadlineExceeded)
}

func TestSemaphoreControl(t *testing.T) {
	s := NewSemaphoreControl(1)
	require.NoError(t, s.Acquire(context.Background()))
	assert.Equal(t, 1, s.InUse())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Acquire(ctx), ErrAcquireTimeout)

	require.NoError(t, s.Release())
	assert.ErrorIs(t, s.Release(), ErrNotAcquired)
}

func TestSemaphoreControl_Capacity(t *testing.T) {
	assert.Equal(t, 16, NewSemaphoreControl(16).Capacity())
	assert.Equal(t, DefaultMaxInFlight, NewSemaphoreControl(0).Capacity())
}
