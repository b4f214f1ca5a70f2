package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/cafe-pos/registry"
	"github.com/yeremiapane/cafe-pos/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 64
	commandTimeout = 10 * time.Second
)

// Client is one authenticated websocket connection. Only writePump writes to
// conn; everything else goes through the send queue.
type Client struct {
	ID        string
	StaffID   uint
	SessionID string
	Identity  registry.Identity

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	// backlog is written before anything in send and is not bounded by it.
	backlog [][]byte
}

func newClient(hub *Hub, conn *websocket.Conn, staffID uint, sessionID string, identity registry.Identity) *Client {
	return &Client{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		SessionID: sessionID,
		Identity:  identity,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
	}
}

func (c *Client) preload(frames [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backlog = append(c.backlog, frames...)
}

func (c *Client) takeBacklog() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := c.backlog
	c.backlog = nil
	return frames
}

// enqueue reports false when the client is closed or its queue is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) logger() *logrus.Entry {
	return utils.InfoLogger.WithFields(logrus.Fields{
		"conn_id":  c.ID,
		"staff_id": c.StaffID,
	})
}

// readPump dispatches inbound commands until the connection fails, then
// unregisters the client.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger().WithError(err).Warn("websocket read failed")
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		c.hub.HandleCommand(ctx, c, raw)
		cancel()
	}
}

// writePump drains the send queue; closing conn on exit also ends readPump.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for _, data := range c.takeBacklog() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger().WithError(err).Warn("websocket write failed")
			return
		}
	}

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger().WithError(err).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
