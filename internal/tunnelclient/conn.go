package tunnelclient

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beaconlink/beaconlink/internal/frame"
)

const pingInterval = 30 * time.Second

// conn wraps one control connection's websocket.Conn with a single writer
// goroutine, symmetric to internal/tunnelserver's conn (grounded in the
// same other_examples sombochea-tungo writePump/readPump split).
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

func (c *conn) Send(f frame.Frame) error {
	data, err := frame.Encode(f)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.Close(err)
				return
			}
		case <-ticker.C:
			data, _ := frame.Encode(&frame.Ping{})
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.Close(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) Close(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.done)
		c.ws.Close()
	})
}

// Err returns the error that triggered Close, nil on a clean shutdown or if
// the connection is still open.
func (c *conn) Err() error { return c.closeErr }
