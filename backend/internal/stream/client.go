// Package stream connects to the producer that generates edits and feeds its
// records into a replay session.
package stream

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"replayServer/backend/internal/replay"
	"replayServer/backend/internal/ws"
)

var ErrNotConnected = errors.New("PRODUCER_NOT_CONNECTED")

type Options struct {
	URL         string
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Dialer      *websocket.Dialer
}

// Client keeps one websocket to the producer open, reconnecting until its
// context ends. Pause and resume on the session are echoed to the producer so
// it stops generating while nobody is watching the animation.
type Client struct {
	session *replay.Session
	opt     Options

	cmds      chan ws.CommandMessage
	connected atomic.Bool
	received  atomic.Int64
}

func NewClient(session *replay.Session, opt Options) *Client {
	if opt.BaseBackoff <= 0 {
		opt.BaseBackoff = 500 * time.Millisecond
	}
	if opt.MaxBackoff < opt.BaseBackoff {
		opt.MaxBackoff = 30 * time.Second
	}
	if opt.Dialer == nil {
		opt.Dialer = websocket.DefaultDialer
	}
	c := &Client{
		session: session,
		opt:     opt,
		cmds:    make(chan ws.CommandMessage, 16),
	}
	session.Controller.AddListener(c)
	return c
}

func (c *Client) Connected() bool { return c.connected.Load() }

// Received counts stream records routed into the session.
func (c *Client) Received() int64 { return c.received.Load() }

func (c *Client) PlaybackPaused()  { c.send(ws.CommandMessage{Type: ws.CommandPause}) }
func (c *Client) PlaybackResumed() { c.send(ws.CommandMessage{Type: ws.CommandResume}) }

// SendContext forwards extra guidance for a step to the producer.
func (c *Client) SendContext(ctx context.Context, step int, additionalContext string) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	select {
	case c.cmds <- ws.CommandMessage{Type: ws.CommandContext, Step: step, AdditionalContext: additionalContext}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) send(cmd ws.CommandMessage) {
	if !c.Connected() {
		return
	}
	select {
	case c.cmds <- cmd:
	default:
		log.Printf("stream: drop command type=%s: queue full", cmd.Type)
	}
}

// Run dials the producer and reconnects with exponential backoff until ctx
// is done.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		connected, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		backoff := c.opt.BaseBackoff * time.Duration(1<<min(attempt, 16))
		if backoff > c.opt.MaxBackoff {
			backoff = c.opt.MaxBackoff
		}
		attempt++
		log.Printf("stream: disconnected url=%s err=%v, retry in %s", c.opt.URL, err, backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) runOnce(ctx context.Context) (bool, error) {
	conn, _, err := c.opt.Dialer.DialContext(ctx, c.opt.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	log.Printf("stream: connected url=%s session=%s", c.opt.URL, c.session.ID)

	c.connected.Store(true)
	defer c.connected.Store(false)

	done := make(chan struct{})
	defer close(done)
	go c.writeLoop(ctx, conn, done)

	// 重连后先同步当前暂停状态
	if c.session.Controller.Paused() {
		c.send(ws.CommandMessage{Type: ws.CommandPause})
	}

	for {
		var msg ws.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}
		c.route(msg)
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case cmd := <-c.cmds:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(cmd); err != nil {
				log.Printf("stream: write command type=%s error: %v", cmd.Type, err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) route(msg ws.StreamMessage) {
	switch {
	case msg.IsEdit():
		op, err := msg.ToOperation()
		if err != nil {
			log.Printf("stream: bad record: %v", err)
			return
		}
		c.session.Enqueue(op)
	case msg.Type == ws.StreamPrint:
		c.session.Print(msg.ToPrint())
	default:
		log.Printf("stream: ignore record type=%q step=%d", msg.Type, msg.Step)
		return
	}
	c.received.Add(1)
}
