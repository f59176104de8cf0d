package tunnelserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconlink/beaconlink/internal/frame"
	"github.com/beaconlink/beaconlink/internal/tunnel"
)

// fakeSender is a tunnel.FrameSender that discards every frame, used to
// occupy registry slots with entries that aren't backed by a real control
// connection (spec.md §4.4 "Registration").
type fakeSender struct{}

func (fakeSender) Send(frame.Frame) error { return nil }

// newHandshakeServer starts an httptest.Server whose only route runs
// exactly the handshake half of handleConnect against registry, so tests
// can dial a real *websocket.Conn without standing up the full Server.
func newHandshakeServer(t *testing.T, registry *tunnel.Registry) *httptest.Server {
	t.Helper()
	s := &Server{registry: registry}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		cn := newConn(ws)
		go cn.writeLoop()
		defer cn.Close(nil)
		s.handshake(cn, ws)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// registerAndAwait dials srv, sends HELLO + REGISTER_TUNNEL for subdomain,
// and returns the first frame the server sends back (REGISTERED or ERROR).
func registerAndAwait(t *testing.T, srv *httptest.Server, subdomain string) frame.Frame {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/connect"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	hello, err := frame.Encode(&frame.Hello{V: frame.ProtocolVersion})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, hello))

	reg, err := frame.Encode(&frame.RegisterTunnel{Subdomain: subdomain})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, reg))

	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	f, err := frame.Decode(data)
	require.NoError(t, err)
	return f
}

func TestHandshakeRegistersRequestedFreeSubdomain(t *testing.T) {
	registry := tunnel.NewRegistry()
	srv := newHandshakeServer(t, registry)

	got := registerAndAwait(t, srv, "my-app")

	registered, ok := got.(*frame.Registered)
	require.True(t, ok, "expected REGISTERED, got %#v", got)
	assert.Equal(t, "my-app", registered.Subdomain)
	assert.NotEmpty(t, registered.TunnelID)
	assert.NotNil(t, registry.Get("my-app"))
}

func TestHandshakeNoRequestedSubdomainFallsBackToRandom(t *testing.T) {
	registry := tunnel.NewRegistry()
	srv := newHandshakeServer(t, registry)

	got := registerAndAwait(t, srv, "")

	registered, ok := got.(*frame.Registered)
	require.True(t, ok, "expected REGISTERED with a synthesized subdomain, got %#v", got)
	assert.True(t, tunnel.ValidSubdomain(registered.Subdomain))
}

func TestHandshakeInvalidRequestedSubdomainFallsBackToRandom(t *testing.T) {
	registry := tunnel.NewRegistry()
	srv := newHandshakeServer(t, registry)

	// "AB" fails ^[a-z0-9-]{3,63}$ (uppercase, too short); the handshake
	// treats it the same as no request rather than erroring.
	got := registerAndAwait(t, srv, "AB")

	registered, ok := got.(*frame.Registered)
	require.True(t, ok, "expected REGISTERED with a synthesized subdomain, got %#v", got)
	assert.True(t, tunnel.ValidSubdomain(registered.Subdomain))
	assert.NotEqual(t, "ab", registered.Subdomain)
}

// TestHandshakeRequestedSubdomainTakenReturnsError drives spec.md §8
// scenario 7: two clients request the same subdomain; the second gets
// ERROR SUBDOMAIN_TAKEN and is not bound into the registry (connect.go
// handshake's requested-name-taken branch, not the random-retry loop).
func TestHandshakeRequestedSubdomainTakenReturnsError(t *testing.T) {
	registry := tunnel.NewRegistry()
	existing := tunnel.NewEntry("my-app", "t-existing", fakeSender{})
	require.NoError(t, registry.InsertIfAbsent("my-app", existing))

	srv := newHandshakeServer(t, registry)
	got := registerAndAwait(t, srv, "my-app")

	errFrame, ok := got.(*frame.Error)
	require.True(t, ok, "expected ERROR, got %#v", got)
	assert.Equal(t, frame.ErrSubdomainTaken, errFrame.Code)

	// The collision must not have displaced the existing owner.
	assert.Same(t, existing, registry.Get("my-app"))
}

func TestMaxRegisterAttemptsMatchesDesignDecision(t *testing.T) {
	// Guards against silently changing the retry budget documented in
	// DESIGN.md's "Open questions resolved" section without updating it.
	assert.Equal(t, 5, maxRegisterAttempts)
}
