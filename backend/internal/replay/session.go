package replay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"replayServer/backend/internal/textbuf"
)

type Options struct {
	ID        string        // generated when empty
	CharDelay time.Duration // pacing between animated characters
}

// Hooks observe a session. Every field is optional.
type Hooks struct {
	OnStart    func(op Operation)
	OnComplete func(res Result)
	OnSnapshot func(snap Snapshot)
	OnPrint    func(p Print)
}

// SessionState is a point-in-time summary for the control API.
type SessionState struct {
	ID          string     `json:"sessionId"`
	State       string     `json:"state"`
	Paused      bool       `json:"paused"`
	CurrentStep int        `json:"currentStep"`
	InFlight    *Operation `json:"inFlight,omitempty"`
	Queued      int        `json:"queued"`
	Processed   int        `json:"processed"`
	Snapshots   int        `json:"snapshots"`
	LineCount   int        `json:"lineCount"`
	StartedAt   time.Time  `json:"startedAt"`
}

// Session is one replay: one buffer, one queue, one history.
type Session struct {
	ID        string
	StartedAt time.Time

	Buffer     *textbuf.Buffer
	Queue      *Queue
	History    *History
	Controller *Controller
	Engine     *Engine
	Dispatcher *Dispatcher
	Prints     *PrintLog

	mu    sync.RWMutex
	hooks []Hooks
}

func NewSession(ed textbuf.Editor, opt Options) *Session {
	id := opt.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:         id,
		StartedAt:  time.Now(),
		Buffer:     textbuf.NewBuffer(ed),
		Queue:      NewQueue(),
		History:    NewHistory(),
		Controller: NewController(),
		Prints:     NewPrintLog(),
	}
	s.Engine = NewEngine(s.Buffer, s.History, opt.CharDelay)
	s.Dispatcher = NewDispatcher(s.Queue, s.Engine, s.Controller, DispatchHooks{
		OnStart:    s.started,
		OnComplete: s.completed,
	})
	return s
}

// Subscribe registers hooks; subscribe before Run to see every event.
func (s *Session) Subscribe(h Hooks) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

func (s *Session) subscribers() []Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Hooks(nil), s.hooks...)
}

// Run drives the dispatch loop until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	log.Printf("replay: session %s started", s.ID)
	err := s.Dispatcher.Run(ctx)
	log.Printf("replay: session %s stopped: %v", s.ID, err)
	return err
}

func (s *Session) Enqueue(ops ...Operation) {
	s.Dispatcher.Enqueue(ops...)
}

// Print records an annotation and advances the furthest step.
func (s *Session) Print(p Print) {
	s.Prints.Append(p)
	s.Controller.ObserveStep(p.Step)
	for _, h := range s.subscribers() {
		if h.OnPrint != nil {
			h.OnPrint(p)
		}
	}
}

func (s *Session) Pause() bool  { return s.Controller.Pause() }
func (s *Session) Resume() bool { return s.Controller.Resume() }

func (s *Session) State() SessionState {
	st := SessionState{
		ID:          s.ID,
		State:       s.Controller.State().String(),
		Paused:      s.Controller.Paused(),
		CurrentStep: s.Controller.CurrentStep(),
		Queued:      s.Queue.Len(),
		Processed:   s.Dispatcher.Processed(),
		Snapshots:   s.History.Len(),
		LineCount:   s.Buffer.LineCount(),
		StartedAt:   s.StartedAt,
	}
	if op, ok := s.Dispatcher.InFlight(); ok {
		st.InFlight = &op
	}
	return st
}

func (s *Session) started(op Operation) {
	for _, h := range s.subscribers() {
		if h.OnStart != nil {
			h.OnStart(op)
		}
	}
}

func (s *Session) completed(res Result) {
	for _, h := range s.subscribers() {
		if h.OnComplete != nil {
			h.OnComplete(res)
		}
		if res.Snapshot != nil && h.OnSnapshot != nil {
			h.OnSnapshot(*res.Snapshot)
		}
	}
}
