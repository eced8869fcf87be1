package chatws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/DietChatBack/internal/models"
)

// Session is the per-role chat controller the gateway drives. Attach streams
// snapshots through the callbacks until Close.
type Session interface {
	Attach(ctx context.Context, chatID string, onChat func(models.Chat), onMessages func([]models.Message)) error
	SendMessage(ctx context.Context, chatID, text string) error
	Close()
}

// SessionFactory builds the controller matching the connected user's role.
type SessionFactory func(userID, role string) Session

// Gateway bridges browser websocket connections to chat sessions: inbound
// frames become sends, subscription snapshots become outbound frames.
type Gateway struct {
	sessions SessionFactory
}

func NewGateway(sessions SessionFactory) *Gateway {
	return &Gateway{sessions: sessions}
}

// Frame is the wire format in both directions. Inbound frames carry type
// "message" with text; outbound frames are chat or messages snapshots, or an
// error.
type Frame struct {
	Type     string           `json:"type"`
	Chat     *models.Chat     `json:"chat,omitempty"`
	Messages []models.Message `json:"messages,omitempty"`
	Text     string           `json:"text,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, 32),
	}
}

// Handle serves one websocket connection until it drops. The chat id comes
// from the upgrade request's query; the attached session is torn down the
// moment the connection goes away, so no callbacks outlive the viewer.
func (g *Gateway) Handle(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)
	chatID := conn.Query("chat")

	c := newClient(conn)
	go c.writePump()
	defer c.shutdown()

	if userID == "" || chatID == "" {
		c.sendFrame(Frame{Type: "error", Error: "missing user or chat"})
		return
	}

	session := g.sessions(userID, role)
	defer session.Close()

	err := session.Attach(context.Background(), chatID,
		func(chat models.Chat) {
			snapshot := chat
			c.sendFrame(Frame{Type: "chat", Chat: &snapshot})
		},
		func(messages []models.Message) {
			c.sendFrame(Frame{Type: "messages", Messages: messages})
		},
	)
	if err != nil {
		c.sendFrame(Frame{Type: "error", Error: "failed to open chat"})
		return
	}

	c.readPump(session, chatID)
}

func (c *client) readPump(session Session, chatID string) {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming Frame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.sendFrame(Frame{Type: "error", Error: "invalid frame"})
			continue
		}
		if incoming.Type != "message" {
			c.sendFrame(Frame{Type: "error", Error: "unsupported frame type"})
			continue
		}

		if err := session.SendMessage(context.Background(), chatID, incoming.Text); err != nil {
			c.sendFrame(Frame{Type: "error", Error: "message rejected"})
		}
	}
}

func (c *client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// sendFrame queues a frame without blocking the subscription callback; a
// connection that cannot keep up loses frames rather than stalling the
// engine, and the next snapshot carries the full state anyway. Frames
// arriving after shutdown are dropped; a subscription callback may still be
// in flight when the connection goes away, so the closed check and the send
// hold the same lock.
func (c *client) sendFrame(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("chat gateway encode frame: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
