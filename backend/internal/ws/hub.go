package ws

import (
	"context"
	"log"
	"sync"

	"replayServer/backend/internal/cache"
	"replayServer/backend/internal/replay"
	"replayServer/backend/internal/textbuf"
)

type Hub struct {
	// 在线观众的外部存储（一般是 redis 实现），为 nil 时只维护本地房间
	presence cache.ViewerPresence
	// 保护 rooms
	mu sync.RWMutex
	// sessionID -> set of connections
	rooms map[string]map[*Conn]struct{}
}

func NewHub(p cache.ViewerPresence) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{})}
}

// Join 将连接加入会话房间
func (h *Hub) Join(sessionID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[sessionID] == nil {
		// 同一个人可能开多个标签页，按连接存而不是按 viewer
		h.rooms[sessionID] = make(map[*Conn]struct{})
	}
	h.rooms[sessionID][c] = struct{}{}
}

// Leave 将连接从会话房间移除
func (h *Hub) Leave(sessionID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[sessionID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) Broadcast(sessionID string, msg ServerMessage) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	msg.SessionID = sessionID
	for _, c := range conns {
		c.Enqueue(msg)
	}
}

func (h *Hub) BroadcastViewers(ctx context.Context, sessionID string) {
	if h.presence == nil {
		return
	}
	viewers, err := h.presence.AliveViewers(ctx, sessionID)
	if err != nil {
		log.Printf("get alive viewers error (session=%s): %v", sessionID, err)
		return
	}
	h.Broadcast(sessionID, ServerMessage{Type: "viewers", Viewers: viewers})
}

// Attach 把会话的编辑、快照、print 和暂停状态镜像给房间里的所有观众。
func (h *Hub) Attach(s *replay.Session) {
	if doc, ok := s.Buffer.Editor().(interface{ SetObserver(textbuf.Observer) }); ok {
		doc.SetObserver(roomObserver{hub: h, sessionID: s.ID})
	}
	s.Subscribe(replay.Hooks{
		OnSnapshot: func(snap replay.Snapshot) {
			h.Broadcast(s.ID, ServerMessage{Type: "snapshot", Snapshot: &snap})
		},
		OnPrint: func(p replay.Print) {
			h.Broadcast(s.ID, ServerMessage{Type: "print", Print: &p})
		},
		OnComplete: func(replay.Result) {
			h.broadcastState(s)
		},
	})
	s.Controller.AddListener(stateListener{hub: h, session: s})
}

func (h *Hub) broadcastState(s *replay.Session) {
	st := s.State()
	h.Broadcast(s.ID, ServerMessage{Type: "state", State: &st})
}

// roomObserver 把 Document 的每次变更转发到房间
type roomObserver struct {
	hub       *Hub
	sessionID string
}

func (o roomObserver) EditApplied(c textbuf.Change) {
	o.hub.Broadcast(o.sessionID, ServerMessage{Type: "edit", Change: &c})
}

func (o roomObserver) CursorMoved(p textbuf.Position) {
	o.hub.Broadcast(o.sessionID, ServerMessage{Type: "cursor", Cursor: &p})
}

func (o roomObserver) LineRevealed(line int) {
	o.hub.Broadcast(o.sessionID, ServerMessage{Type: "reveal", Line: line})
}

type stateListener struct {
	hub     *Hub
	session *replay.Session
}

func (l stateListener) PlaybackPaused()  { l.hub.broadcastState(l.session) }
func (l stateListener) PlaybackResumed() { l.hub.broadcastState(l.session) }
