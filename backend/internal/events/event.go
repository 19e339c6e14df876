package events

import (
	"context"
	"time"
)

const (
	TypeStepCaptured = "STEP_CAPTURED"
	TypePrint        = "PRINT"
)

// Event 是回放过程中对外发布的事件：每个 step 边界的快照，以及 producer 发来的 print。
type Event struct {
	EventType  string    `json:"eventType"` // "STEP_CAPTURED" | "PRINT"
	EventID    string    `json:"eventId"`
	SessionID  string    `json:"sessionId"`
	Step       int       `json:"step"`
	Index      int       `json:"index"` // history 下标，仅 STEP_CAPTURED
	Content    string    `json:"content"`
	Format     string    `json:"format,omitempty"` // 仅 PRINT
	OccurredAt time.Time `json:"occurredAt"`
}

// Sink 是事件的落地点（kafka / redis / mysql）。
type Sink interface {
	Publish(ctx context.Context, evt Event) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, evt Event) error

func (f SinkFunc) Publish(ctx context.Context, evt Event) error { return f(ctx, evt) }
