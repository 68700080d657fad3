package server

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemtable/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// ErrConnClosed is returned by Send once the connection is shut down or its
// buffer overflows.
var ErrConnClosed = errors.New("connection closed")

// Conn wraps a client websocket with a buffered outbound queue and a write
// pump, so broadcasts never block on a slow client.
type Conn struct {
	ws        *websocket.Conn
	send      chan protocol.ServerMessage
	done      chan struct{}
	closeOnce sync.Once
	logger    *log.Logger
}

// NewConn wraps an upgraded websocket. Start must be called before Send.
func NewConn(ws *websocket.Conn, logger *log.Logger) *Conn {
	return &Conn{
		ws:     ws,
		send:   make(chan protocol.ServerMessage, 256),
		done:   make(chan struct{}),
		logger: logger.WithPrefix("conn"),
	}
}

// Start configures read limits and launches the write pump. Send must not
// be used before Start; SendNow may be.
func (c *Conn) Start() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.writePump()
}

// SendNow writes a message synchronously, bypassing the pump. Only safe
// before Start; used for handshake rejections.
func (c *Conn) SendNow(msg protocol.ServerMessage) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// Close shuts the connection down. Safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// Send queues a message for delivery. It never blocks: a full buffer closes
// the connection, since a client that far behind is not coming back.
func (c *Conn) Send(msg protocol.ServerMessage) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnClosed
	}
}

// ReadMessage returns the next text frame from the client.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debug("write failed", "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		}
	}
}
