package ws

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/scrumdeal/scrumdeal/internal/protocol"
)

const sendBufferSize = 32

// Client adapts a websocket connection to the session Sink. Sends go
// through a buffered channel drained by a single writer goroutine, since
// gorilla connections allow only one concurrent writer.
type Client struct {
	conn   *websocket.Conn
	send   chan *protocol.Event
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan *protocol.Event, sendBufferSize),
		logger: logger,
	}
}

// Send queues an event for delivery. A slow client drops events rather
// than stalling broadcast fan-out for everyone else at the table.
func (c *Client) Send(ev *protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- ev:
		return nil
	default:
		c.logger.Warn("dropping event for slow client", slog.String("event", string(ev.Type)))
		return errors.New("send buffer full")
	}
}

// Close stops accepting events and lets the writer flush what is queued
// before closing the socket
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump serializes queued events onto the socket until the send
// channel closes or a write fails
func (c *Client) writePump() {
	defer c.conn.Close()
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
