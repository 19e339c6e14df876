package ws

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"replayServer/backend/internal/replay"
)

// 允许本地开发环境的来源
var upgrader = websocket.Upgrader{CheckOrigin: checkOrigin}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" { // 一些环境不发送 Origin，或为 "null"
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}

type Manager struct {
	h        *Hub
	session  *replay.Session
	producer Producer
}

func NewManager(h *Hub, session *replay.Session, producer Producer) *Manager {
	return &Manager{h: h, session: session, producer: producer}
}

func (m *Manager) WebSocketConnect(c *gin.Context) {
	name := c.GetString("username")
	if name == "" {
		name = c.Query("name")
	}
	viewerID := uuid.NewString()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.h, m.session, m.producer, viewerID, name)
	wsConn.welcome = func() ServerMessage { return m.welcome(viewerID) }

	// 先启动写循环
	go wsConn.writeLoop()

	// 先入房间再取全文。观众只应用 version 大于 welcome.version 的 edit，
	// 包括排在 welcome 之前到达的那些。
	m.h.Join(m.session.ID, wsConn)
	defer m.leave(wsConn)
	wsConn.reply(m.welcome(viewerID))

	ctx := c.Request.Context()
	wsConn.touchPresence(ctx)

	// 阻塞至连接关闭
	wsConn.readLoop(ctx)
}

func (m *Manager) welcome(viewerID string) ServerMessage {
	text, version := m.currentText()
	st := m.session.State()
	return ServerMessage{Type: "welcome", SessionID: m.session.ID, ViewerID: viewerID, State: &st, Content: text, Version: version}
}

func (m *Manager) currentText() (string, uint64) {
	if doc, ok := m.session.Buffer.Editor().(interface{ VersionedValue() (string, uint64) }); ok {
		return doc.VersionedValue()
	}
	return m.session.Buffer.FullText(), 0
}

func (m *Manager) leave(c *Conn) {
	m.h.Leave(m.session.ID, c)
	if m.h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.h.presence.RemoveViewer(ctx, m.session.ID, c.viewerID); err != nil {
		log.Printf("remove viewer error (session=%s viewer=%s): %v", m.session.ID, c.viewerID, err)
		return
	}
	m.h.BroadcastViewers(ctx, m.session.ID)
}
