package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"replayServer/backend/internal/replay"
)

// 心跳续期的在线时长
const viewerTTL = 60 * time.Second

const sendQueueSize = 256

// Producer 是回放源，观众发来的 context 通过它转发。
type Producer interface {
	SendContext(ctx context.Context, step int, additionalContext string) error
}

type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	session  *replay.Session
	producer Producer
	viewerID string
	name     string

	mu     sync.Mutex
	closed bool
	// 出站队列满过一次后置位；队列排空前丢弃新消息，排空后补发 welcome
	stale bool
	// 生成带全文和 version 的 welcome，用于重新同步
	welcome func() ServerMessage
	// 出站队列，由 writeLoop 消费
	send chan ServerMessage
}

func NewConn(ws *websocket.Conn, hub *Hub, session *replay.Session, producer Producer, viewerID, name string) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		session:  session,
		producer: producer,
		viewerID: viewerID,
		name:     name,
		send:     make(chan ServerMessage, sendQueueSize),
	}
}

// Enqueue 不阻塞；连接已关闭或正等待重新同步时丢弃
func (c *Conn) Enqueue(msg ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.stale {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.stale = true
		log.Printf("drop message type=%s viewer=%s: send queue full, resync after drain", msg.Type, c.viewerID)
	}
}

// resync 在队列排空后补发一次 welcome。stale 先清掉，之后的 edit 可能排在
// welcome 前面，观众按 version 过滤，与刚加入时相同。
func (c *Conn) resync() {
	c.mu.Lock()
	if c.closed || !c.stale || len(c.send) > 0 || c.welcome == nil {
		c.mu.Unlock()
		return
	}
	c.stale = false
	c.mu.Unlock()

	msg := c.welcome()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.stale = true
	}
}

func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Conn) reply(msg ServerMessage) {
	msg.SessionID = c.session.ID
	c.Enqueue(msg)
}

func (c *Conn) replyError(err error) {
	c.reply(ServerMessage{Type: "error", Content: err.Error()})
}

func (c *Conn) touchPresence(ctx context.Context) {
	if c.hub.presence == nil {
		return
	}
	if err := c.hub.presence.AddViewer(ctx, c.session.ID, c.viewerID, c.name, viewerTTL); err != nil {
		log.Printf("add viewer error (session=%s viewer=%s): %v", c.session.ID, c.viewerID, err)
		return
	}
	c.hub.BroadcastViewers(ctx, c.session.ID)
}

func (c *Conn) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case "heartbeat":
		if msg.Name != "" {
			c.name = msg.Name
		}
		c.touchPresence(ctx)
		c.reply(ServerMessage{Type: "heartbeat", Content: "ok"})

	// 状态变化时 hub 已向整个房间广播，这里只回复没有变化的请求
	case "pause":
		if !c.session.Pause() {
			c.sendState()
		}

	case "resume":
		if !c.session.Resume() {
			c.sendState()
		}

	case "state":
		c.sendState()

	case "select_step":
		d, err := c.session.History.DiffFor(msg.Step)
		if err != nil {
			c.replyError(err)
			return
		}
		unified, err := c.session.History.UnifiedDiff(msg.Step)
		if err != nil {
			c.replyError(err)
			return
		}
		c.reply(ServerMessage{Type: "diff", Diff: &DiffPayload{Diff: d, Unified: unified}})

	case "context":
		if c.producer == nil {
			c.replyError(errors.New("PRODUCER_NOT_CONNECTED"))
			return
		}
		sendCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.producer.SendContext(sendCtx, msg.Step, msg.AdditionalContext); err != nil {
			c.replyError(err)
			return
		}
		c.reply(ServerMessage{Type: "context", Content: "forwarded"})

	default:
		c.reply(ServerMessage{Type: "ignored", Content: "Unknown message type"})
	}
}

func (c *Conn) sendState() {
	st := c.session.State()
	c.reply(ServerMessage{Type: "state", State: &st})
}

func (c *Conn) readLoop(ctx context.Context) {
	defer c.closeSend()
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("read json error (session=%s viewer=%s): %v", c.session.ID, c.viewerID, err)
			}
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *Conn) writeLoop() {
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.ws.WriteJSON(msg); err != nil {
			log.Printf("write json error (session=%s viewer=%s): %v", c.session.ID, c.viewerID, err)
			// 让 readLoop 也退出
			_ = c.ws.Close()
			for range c.send {
			}
			return
		}
		c.resync()
	}
}
