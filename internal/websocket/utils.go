package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn serialises writes to a connection shared by several goroutines.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

// Wrap prepares conn for concurrent writers.
func Wrap(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadRequest reads and decodes the next client message.
// It sets a read deadline.
func (c *Conn) ReadRequest(v *Request) error {
	c.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return c.ReadJSON(v)
}
