package replay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replayServer/backend/internal/textbuf"
)

func TestSession_StateAndHooks(t *testing.T) {
	s := NewSession(textbuf.NewDocument(""), Options{ID: "demo"})
	assert.Equal(t, "demo", s.ID)

	var mu sync.Mutex
	var printed []Print
	var completed int
	s.Subscribe(Hooks{
		OnPrint: func(p Print) {
			mu.Lock()
			printed = append(printed, p)
			mu.Unlock()
		},
		OnComplete: func(Result) {
			mu.Lock()
			completed++
			mu.Unlock()
		},
	})

	s.Print(Print{Text: "starting", Step: 2})
	assert.Equal(t, 2, s.Controller.CurrentStep())

	s.Pause()
	st := s.State()
	assert.Equal(t, "paused", st.State)
	assert.True(t, st.Paused)
	assert.Nil(t, st.InFlight)

	startSession(t, s)
	s.Enqueue(Operation{Kind: Insert, Line: 1, Text: "x = 1", StepBoundary: true, Step: 2})
	assert.Equal(t, 1, s.State().Queued)

	s.Resume()
	waitIdle(t, s)

	st = s.State()
	assert.Equal(t, "running", st.State)
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, 1, st.Snapshots)
	assert.Equal(t, 1, st.LineCount)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, printed, 1)
	assert.Equal(t, "starting", printed[0].Text)
	assert.Equal(t, 1, completed)
}

func TestSession_GeneratesID(t *testing.T) {
	a := NewSession(textbuf.NewDocument(""), Options{})
	b := NewSession(textbuf.NewDocument(""), Options{})
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
