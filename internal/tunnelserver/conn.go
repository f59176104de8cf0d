package tunnelserver

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beaconlink/beaconlink/internal/frame"
)

// pingInterval drives the server's half of the keepalive. readLoop answers
// the client's PINGs with PONG and ignores PONGs; it sets no read deadline,
// so a silent peer is only detected when a read or write fails.
const pingInterval = 30 * time.Second

// conn owns one control connection's websocket.Conn and serializes writes
// to it through a buffered channel, so the read loop, the proxy handlers
// emitting OPEN_STREAM/REQ_DATA, and the keepalive ticker never write
// concurrently (gorilla/websocket requires single-writer discipline).
// Grounded in the teacher's writer-goroutine-per-connection pattern
// (other_examples sombochea-tungo client.go writePump/readPump), the
// counterpart to this package's server side.
type conn struct {
	ws *websocket.Conn

	send     chan []byte
	done     chan struct{}
	closeErr error

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// Send implements tunnel.FrameSender.
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

// writeLoop is the connection's only writer, per gorilla/websocket's
// concurrency contract.
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

// Close tears down the connection exactly once; err is the triggering
// failure, nil on a clean shutdown.
func (c *conn) Close(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.done)
		c.ws.Close()
		if err != nil {
			log.Printf("tunnelserver: connection closed: %v", err)
		}
	})
}
