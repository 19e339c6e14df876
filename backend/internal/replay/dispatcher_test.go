package replay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replayServer/backend/internal/textbuf"
)

func startSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitIdle(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, s.Dispatcher.Idle, 5*time.Second, time.Millisecond)
}

func scriptedOps() []Operation {
	return []Operation{
		{Kind: Insert, Line: 1, Text: "def pay(day):", Step: 0},
		{Kind: Insert, Line: 2, Text: "    result = lookup(day)\n    return result.amount", StepBoundary: true, Step: 0},
		{Kind: Delete, Line: 3, Step: 1},
		{Kind: Insert, Line: 3, Text: "    if result is None:\n        return 0", Step: 1},
		{Kind: Insert, Line: 5, Text: "    return result.amount", StepBoundary: true, Step: 1},
		{Kind: Delete, Line: 40, StepBoundary: true, Step: 2},
	}
}

const scriptedFinal = "def pay(day):\n    result = lookup(day)\n    if result is None:\n        return 0\n    return result.amount"

func TestDispatcher_AtMostOneInFlight(t *testing.T) {
	s := NewSession(textbuf.NewDocument(""), Options{CharDelay: 50 * time.Microsecond})

	var active, maxActive int32
	var mu sync.Mutex
	var events []string
	s.Subscribe(Hooks{
		OnStart: func(op Operation) {
			n := atomic.AddInt32(&active, 1)
			if n > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, n)
			}
			_, inFlight := s.Dispatcher.InFlight()
			assert.True(t, inFlight)
			mu.Lock()
			events = append(events, "start:"+op.Text)
			mu.Unlock()
		},
		OnComplete: func(res Result) {
			atomic.AddInt32(&active, -1)
			mu.Lock()
			events = append(events, "done:"+res.Op.Text)
			mu.Unlock()
		},
	})

	// a second loop on the same dispatcher must still never overlap
	startSession(t, s)
	startSession(t, s)

	ops := scriptedOps()
	for _, op := range ops {
		s.Enqueue(op)
	}
	waitIdle(t, s)

	assert.EqualValues(t, 1, atomic.LoadInt32(&maxActive))
	require.Len(t, events, 2*len(ops))
	for i, op := range ops {
		assert.Equal(t, "start:"+op.Text, events[2*i])
		assert.Equal(t, "done:"+op.Text, events[2*i+1])
	}
	assert.Equal(t, scriptedFinal, s.Buffer.FullText())
}

func TestDispatcher_ConcurrentEnqueueProcessesEverythingOnce(t *testing.T) {
	s := NewSession(textbuf.NewDocument(""), Options{})
	startSession(t, s)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.Enqueue(Operation{Kind: Insert, Line: 1, Text: "x", StepBoundary: true, Step: i})
			}
		}()
	}
	wg.Wait()
	waitIdle(t, s)

	assert.Equal(t, 100, s.Dispatcher.Processed())
	assert.Equal(t, 100, s.History.Len())
	assert.Equal(t, 100, s.Buffer.LineCount())
}

func TestDispatcher_PausedBeforeStartHoldsQueue(t *testing.T) {
	s := NewSession(textbuf.NewDocument(""), Options{})
	s.Pause()
	startSession(t, s)

	s.Enqueue(scriptedOps()...)
	assert.Never(t, func() bool { return s.Dispatcher.Processed() > 0 }, 30*time.Millisecond, time.Millisecond)
	assert.Equal(t, len(scriptedOps()), s.Queue.Len())

	s.Resume()
	waitIdle(t, s)
	assert.Equal(t, scriptedFinal, s.Buffer.FullText())
}

func TestDispatcher_PauseLetsInFlightOperationFinish(t *testing.T) {
	s := NewSession(textbuf.NewDocument(""), Options{CharDelay: 100 * time.Microsecond})
	first := make(chan struct{})
	var once sync.Once
	s.Subscribe(Hooks{OnStart: func(op Operation) {
		once.Do(func() {
			s.Pause()
			close(first)
		})
	}})
	startSession(t, s)

	ops := scriptedOps()
	s.Enqueue(ops...)
	<-first

	require.Eventually(t, func() bool { return s.Dispatcher.Processed() == 1 }, 5*time.Second, time.Millisecond)
	assert.Never(t, func() bool { return s.Dispatcher.Processed() > 1 }, 30*time.Millisecond, time.Millisecond)
	assert.Equal(t, "def pay(day):", s.Buffer.FullText())
	_, inFlight := s.Dispatcher.InFlight()
	assert.False(t, inFlight)
	assert.Equal(t, len(ops)-1, s.Queue.Len())

	s.Resume()
	waitIdle(t, s)
	assert.Equal(t, scriptedFinal, s.Buffer.FullText())
}

func TestDispatcher_PauseResumeMatchesUninterruptedRun(t *testing.T) {
	ops := scriptedOps()

	plain := NewSession(textbuf.NewDocument(""), Options{})
	startSession(t, plain)
	plain.Enqueue(ops...)
	waitIdle(t, plain)

	paused := NewSession(textbuf.NewDocument(""), Options{})
	paused.Subscribe(Hooks{OnComplete: func(res Result) {
		if res.Op.Step == 1 && res.Op.Kind == Delete {
			paused.Pause()
		}
	}})
	startSession(t, paused)
	paused.Enqueue(ops...)
	require.Eventually(t, paused.Controller.Paused, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { _, f := paused.Dispatcher.InFlight(); return !f }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 3, paused.Dispatcher.Processed())

	paused.Resume()
	waitIdle(t, paused)

	assert.Equal(t, plain.Buffer.FullText(), paused.Buffer.FullText())
	assert.Equal(t, plain.Dispatcher.Processed(), paused.Dispatcher.Processed())
	require.Equal(t, plain.History.Len(), paused.History.Len())
	for i := 0; i < plain.History.Len(); i++ {
		a, _ := plain.History.At(i)
		b, _ := paused.History.At(i)
		assert.Equal(t, a.Text, b.Text)
	}
}

func TestDispatcher_SnapshotCountMatchesBoundaries(t *testing.T) {
	s := NewSession(textbuf.NewDocument(""), Options{})
	var snaps []Snapshot
	var mu sync.Mutex
	s.Subscribe(Hooks{OnSnapshot: func(snap Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	}})
	startSession(t, s)

	ops := scriptedOps()
	s.Enqueue(ops...)
	waitIdle(t, s)

	boundaries := 0
	for _, op := range ops {
		if op.StepBoundary {
			boundaries++
		}
	}
	assert.Equal(t, boundaries, s.History.Len())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, boundaries)
	for i, snap := range snaps {
		assert.Equal(t, i, snap.Index)
		if i > 0 {
			d, err := s.History.DiffFor(i)
			require.NoError(t, err)
			assert.Equal(t, snaps[i-1].Text, d.Before)
		}
	}
	// the out-of-range delete closed step 2 without touching the text
	assert.Equal(t, snaps[1].Text, snaps[2].Text)
	assert.Equal(t, 2, s.Controller.CurrentStep())
}
