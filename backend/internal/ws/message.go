package ws

import (
	"errors"
	"fmt"

	"replayServer/backend/internal/cache"
	"replayServer/backend/internal/replay"
	"replayServer/backend/internal/textbuf"
)

// producer 推流消息类型
const (
	StreamInsert = "i"
	StreamDelete = "d"
	StreamPrint  = "p"
)

var ErrUnknownStreamType = errors.New("UNKNOWN_STREAM_TYPE")

// StreamMessage 是 producer 推过来的一条记录。
// lineno 从 0 开始，进入回放时 +1；end 表示该 step 的最后一条操作。
type StreamMessage struct {
	Type   string `json:"type"` // "i" | "d" | "p"
	Lineno int    `json:"lineno"`
	Step   int    `json:"step"`
	Text   string `json:"text,omitempty"`
	End    bool   `json:"end,omitempty"`
	Format string `json:"format,omitempty"` // 仅 "p"
}

func (m StreamMessage) IsEdit() bool { return m.Type == StreamInsert || m.Type == StreamDelete }

func (m StreamMessage) ToOperation() (replay.Operation, error) {
	op := replay.Operation{
		Line:         m.Lineno + 1,
		Text:         m.Text,
		StepBoundary: m.End,
		Step:         m.Step,
	}
	switch m.Type {
	case StreamInsert:
		op.Kind = replay.Insert
	case StreamDelete:
		op.Kind = replay.Delete
		op.Text = ""
	default:
		return replay.Operation{}, fmt.Errorf("type %q: %w", m.Type, ErrUnknownStreamType)
	}
	return op, nil
}

func (m StreamMessage) ToPrint() replay.Print {
	return replay.Print{Text: m.Text, Format: m.Format, Step: m.Step}
}

// 发回 producer 的控制命令
const (
	CommandPause   = "pause"
	CommandResume  = "resume"
	CommandContext = "context"
)

type CommandMessage struct {
	Type              string `json:"type"`
	Step              int    `json:"step,omitempty"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// 观众 -> 服务端
type ClientMessage struct {
	Type              string `json:"type"` // heartbeat | pause | resume | state | select_step | context
	Name              string `json:"name,omitempty"`
	Step              int    `json:"step"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

type DiffPayload struct {
	replay.Diff
	Unified string `json:"unified"`
}

// 服务端 -> 观众
type ServerMessage struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	ViewerID  string               `json:"viewerId,omitempty"`
	Change    *textbuf.Change      `json:"change,omitempty"`
	Cursor    *textbuf.Position    `json:"cursor,omitempty"`
	Line      int                  `json:"line,omitempty"`
	Snapshot  *replay.Snapshot     `json:"snapshot,omitempty"`
	Print     *replay.Print        `json:"print,omitempty"`
	State     *replay.SessionState `json:"state,omitempty"`
	Diff      *DiffPayload         `json:"diff,omitempty"`
	Viewers   []cache.Viewer       `json:"viewers,omitempty"`
	Content   string               `json:"content,omitempty"`
	Version   uint64               `json:"version,omitempty"` // welcome: 全文对应的编辑版本
}
