package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replayServer/backend/internal/replay"
	"replayServer/backend/internal/textbuf"
)

func TestBus_SessionHooksEmitEvents(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	bus := NewBus("s-42", 0,
		NewDispatcher("a", a, nil, fastOptions()),
		NewDispatcher("b", b, nil, fastOptions()),
	)
	assert.Equal(t, 2, bus.Len())

	s := replay.NewSession(textbuf.NewDocument(""), replay.Options{ID: "s-42"})
	s.Subscribe(bus.Hooks())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	s.Print(replay.Print{Text: "Error we're trying to fix:", Step: 0})
	s.Enqueue(replay.Operation{Kind: replay.Insert, Line: 1, Text: "x = 1", StepBoundary: true, Step: 0})
	require.Eventually(t, s.Dispatcher.Idle, time.Second, time.Millisecond)
	bus.Close()

	for _, sink := range []*recordingSink{a, b} {
		got := sink.got()
		require.Len(t, got, 2)
		assert.Equal(t, TypePrint, got[0].EventType)
		assert.Equal(t, TypeStepCaptured, got[1].EventType)
		assert.Equal(t, "x = 1", got[1].Content)
		for _, evt := range got {
			assert.Equal(t, "s-42", evt.SessionID)
			assert.NotEmpty(t, evt.EventID)
			assert.False(t, evt.OccurredAt.IsZero())
		}
	}
	assert.NotEqual(t, a.got()[0].EventID, a.got()[1].EventID)
}
