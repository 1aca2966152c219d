package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 64 << 10
	sendBufferSize = 64
)

// Client is one WebSocket connection. Frames are queued on send and written
// by writePump, the only goroutine that writes to conn.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func newClient(userID string, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

// enqueue queues v for writing. A client that cannot keep up is
// disconnected rather than allowed to stall its producers.
func (c *Client) enqueue(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error("encode frame", "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.log.Warn("client too slow, disconnecting")
		c.shutdown()
		_ = c.conn.Close()
	}
}

// shutdown stops writePump. Safe to call more than once.
func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
