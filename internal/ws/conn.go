package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn wraps a websocket connection with a write mutex. Gorilla
// connections support one concurrent writer only, and both the read
// loop (close frames) and the broadcaster write to viewers.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// Send writes one text frame. Implements viewers.Conn.
func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection. Implements viewers.Conn.
func (c *wsConn) Close() error {
	return c.conn.Close()
}

// closeWithReason sends a close control frame with a status code and a
// human-readable reason, then closes the connection.
func (c *wsConn) closeWithReason(code int, reason string) {
	c.mu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.mu.Unlock()
	_ = c.conn.Close()
}
