package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"replayServer/backend/internal/replay"
)

// Bus fans one event out to every registered dispatcher.
type Bus struct {
	sessionID      string
	dispatchers    []*Dispatcher
	enqueueTimeout time.Duration
}

func NewBus(sessionID string, enqueueTimeout time.Duration, dispatchers ...*Dispatcher) *Bus {
	if enqueueTimeout <= 0 {
		enqueueTimeout = 100 * time.Millisecond
	}
	return &Bus{sessionID: sessionID, dispatchers: dispatchers, enqueueTimeout: enqueueTimeout}
}

func (b *Bus) Len() int { return len(b.dispatchers) }

func (b *Bus) Emit(evt Event) {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.SessionID == "" {
		evt.SessionID = b.sessionID
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	for _, d := range b.dispatchers {
		ctx, cancel := context.WithTimeout(context.Background(), b.enqueueTimeout)
		if err := d.Enqueue(ctx, evt); err != nil {
			log.Printf("%s enqueue failed, drop event type=%s session=%s step=%d err=%v",
				d.name, evt.EventType, evt.SessionID, evt.Step, err)
		}
		cancel()
	}
}

// Hooks 把 bus 挂到回放会话上：快照和 print 都会变成事件。
func (b *Bus) Hooks() replay.Hooks {
	return replay.Hooks{
		OnSnapshot: func(snap replay.Snapshot) {
			b.Emit(Event{
				EventType:  TypeStepCaptured,
				Step:       snap.Step,
				Index:      snap.Index,
				Content:    snap.Text,
				OccurredAt: snap.CapturedAt,
			})
		},
		OnPrint: func(p replay.Print) {
			b.Emit(Event{
				EventType: TypePrint,
				Step:      p.Step,
				Content:   p.Text,
				Format:    p.Format,
			})
		},
	}
}

func (b *Bus) Close() {
	for _, d := range b.dispatchers {
		d.Close()
	}
}
