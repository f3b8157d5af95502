package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one client WebSocket. All writes are serialized
// through a single writer goroutine; gorilla connections do not allow
// concurrent writers.
type Connection struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	writeCh    chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
}

// NewConnection wraps a WebSocket connection and starts its writer.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:         uuid.New().String(),
		remoteAddr: conn.RemoteAddr().String(),
		conn:       conn,
		writeCh:    make(chan []byte, 16),
		ctx:        ctx,
		cancel:     cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the connection's identifier, used for registry lookup and
// log correlation.
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// Context is cancelled when the connection closes. Store operations
// issued on behalf of this connection run under it, so an in-flight
// transaction either commits fully or aborts cleanly on disconnect.
func (c *Connection) Context() context.Context {
	return c.ctx
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for delivery as one text frame.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
