package tunnelclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beaconlink/beaconlink/internal/config"
	"github.com/beaconlink/beaconlink/internal/frame"
	"github.com/beaconlink/beaconlink/internal/logging"
)

// connectTimeout bounds the initial WebSocket dial (spec.md §4.2 "Startup").
const connectTimeout = 8 * time.Second

// reconnect backoff bounds, grounded in the teacher's
// GRPCTunnelClient.reconnect exponential backoff.
const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// Client is the tunnel client: it owns the local origin, the requested
// registration parameters, and the lifetime of however many control
// connections it takes to keep the tunnel up.
type Client struct {
	cfg          *config.ClientConfig
	localAddr    string
	subdomain    string
	token        string
	origin       *httpOriginClient
	logger       *logging.Logger
	onRegistered func(publicURL string)

	mu       sync.Mutex
	streams  map[uint64]*clientStream
	tunnelID string
}

// New creates a client that will proxy to localAddr once connected.
func New(cfg *config.ClientConfig, localAddr, subdomain, token string, logger *logging.Logger) *Client {
	return &Client{
		cfg:       cfg,
		localAddr: localAddr,
		subdomain: subdomain,
		token:     token,
		origin:    newHTTPOriginClient(localAddr, cfg.ForceIdentity),
		logger:    logger,
		streams:   make(map[uint64]*clientStream),
	}
}

// OnRegistered sets a callback invoked once per successful registration
// with the derived public URL (spec.md §4.2 "Startup").
func (c *Client) OnRegistered(fn func(publicURL string)) { c.onRegistered = fn }

// Run dials, registers, and serves forever, reconnecting with exponential
// backoff on any disconnect, until stop is closed.
func (c *Client) Run(stop <-chan struct{}) error {
	backoff := minBackoff
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		err := c.runOnce(stop)
		if err == errStopped {
			return nil
		}
		if err != nil {
			c.logger.Warn("tunnelclient: connection lost: %v; reconnecting in %s", err, backoff)
		}

		select {
		case <-time.After(backoff):
		case <-stop:
			return nil
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

var errStopped = errors.New("tunnelclient: stopped")

// runOnce dials one connection, registers, and serves until it drops.
func (c *Client) runOnce(stop <-chan struct{}) error {
	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	ws, _, err := dialer.Dial(c.cfg.ConnectURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.ConnectURL, err)
	}

	cn := newConn(ws)
	go cn.writeLoop()
	defer cn.Close(nil)

	if err := cn.Send(&frame.Hello{V: frame.ProtocolVersion, Token: c.token}); err != nil {
		return err
	}
	if err := cn.Send(&frame.RegisterTunnel{Subdomain: c.subdomain}); err != nil {
		return err
	}

	registered, err := c.awaitRegistration(ws)
	if err != nil {
		return err
	}

	base := c.domainBase()
	publicURL := fmt.Sprintf("https://%s.%s", registered.Subdomain, base)
	c.mu.Lock()
	c.tunnelID = registered.TunnelID
	c.mu.Unlock()
	if c.onRegistered != nil {
		c.onRegistered(publicURL)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-stop:
			cn.Close(errStopped)
		case <-done:
		}
	}()
	defer close(done)

	c.readLoop(ws, cn)

	if err := cn.Err(); err != nil {
		return err
	}
	return errors.New("control connection closed")
}

// domainBase resolves the public domain base: the explicit override if
// set, otherwise the host component of the control URL (spec.md §4.2).
func (c *Client) domainBase() string {
	if c.cfg.DomainBase != "" {
		return c.cfg.DomainBase
	}
	u, err := url.Parse(c.cfg.ConnectURL)
	if err != nil {
		return c.cfg.ConnectURL
	}
	host := u.Host
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// awaitRegistration reads frames until REGISTERED or ERROR arrives.
func (c *Client) awaitRegistration(ws *websocket.Conn) (*frame.Registered, error) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		f, err := frame.Decode(data)
		if err != nil {
			continue
		}
		switch fr := f.(type) {
		case *frame.Registered:
			return fr, nil
		case *frame.Error:
			return nil, fmt.Errorf("registration failed: %s: %s", fr.Code, fr.Message)
		}
	}
}

// readLoop dispatches frames for the lifetime of one control connection
// (spec.md §4.2 "Per-stream handling").
func (c *Client) readLoop(ws *websocket.Conn, cn *conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		f, err := frame.Decode(data)
		if err != nil {
			var unknown *frame.ErrUnknownType
			if !errors.As(err, &unknown) {
				c.logger.Debug("tunnelclient: malformed frame: %v", err)
			}
			continue
		}

		switch fr := f.(type) {
		case *frame.OpenStream:
			cs := newClientStream(fr, c.cfg.ForceStream)
			c.mu.Lock()
			c.streams[cs.id] = cs
			c.mu.Unlock()

			headers := requestHeaders(fr.Headers, c.cfg.ForceIdentity)
			switch cs.mode {
			case modeNone:
				go c.startStream(cn, cs, headers, nil, 0)
			case modeStream:
				go c.startStream(cn, cs, headers, cs.pr, -1)
			case modeBuffer:
				// Deferred until END phase=req supplies the full body.
			}

		case *frame.ReqData:
			cs := c.getStream(fr.StreamID)
			if cs != nil {
				cs.onReqData(fr.Chunk)
			}

		case *frame.End:
			if fr.Phase != frame.PhaseReq {
				continue
			}
			cs := c.getStream(fr.StreamID)
			if cs == nil {
				continue
			}
			cs.onEndReq()
			if cs.mode == modeBuffer {
				headers := requestHeaders(cs.headers, c.cfg.ForceIdentity)
				body := bytes.NewReader(cs.buf.Bytes())
				go c.startStream(cn, cs, headers, body, int64(cs.buf.Len()))
			}

		case *frame.Ping:
			_ = cn.Send(&frame.Pong{})

		case *frame.Pong:
		}
	}
}

// startStream issues one stream's request against the local origin and
// removes the stream from the tracking map once the response completes.
func (c *Client) startStream(cn *conn, cs *clientStream, headers http.Header, body io.Reader, contentLength int64) {
	defer c.removeStream(cs.id)
	c.origin.forward(cn, cs, headers, body, contentLength)
}

func (c *Client) getStream(id uint64) *clientStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[id]
}

func (c *Client) removeStream(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streams, id)
}
