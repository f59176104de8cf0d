package tunnelserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/beaconlink/beaconlink/internal/frame"
	"github.com/beaconlink/beaconlink/internal/logging"
	"github.com/beaconlink/beaconlink/internal/tunnel"
)

// upgrader accepts connect requests from any origin: the control channel
// carries an opaque token, not a browser session, so same-origin policy
// doesn't apply here (spec.md §9 Non-goals: auth beyond the opaque token).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const maxRegisterAttempts = 5

// handleConnect upgrades GET /connect and drives the HELLO/REGISTER_TUNNEL
// handshake, then the connection's full lifetime (spec.md §4.3, §4.1).
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.GetLogger().Warn("tunnelserver: upgrade failed: %v", err)
		return
	}

	cn := newConn(ws)
	go cn.writeLoop()

	entry, ok := s.handshake(cn, ws)
	if !ok {
		cn.Close(nil)
		return
	}

	defer cn.Close(nil)
	defer s.teardown(entry)
	s.readLoop(ws, entry)
}

// handshake reads HELLO then REGISTER_TUNNEL and binds a registry entry.
// Returns ok=false if the handshake fails or the connection should be
// dropped (protocol violation, exhausted collision retries).
func (s *Server) handshake(cn *conn, ws *websocket.Conn) (*tunnel.Entry, bool) {
	helloFrame, err := readFrame(ws)
	if err != nil {
		return nil, false
	}
	hello, ok := helloFrame.(*frame.Hello)
	if !ok {
		return nil, false
	}
	if hello.V != frame.ProtocolVersion {
		logging.GetLogger().Warn("tunnelserver: client protocol version %d != %d, proceeding anyway", hello.V, frame.ProtocolVersion)
	}

	registerFrame, err := readFrame(ws)
	if err != nil {
		return nil, false
	}
	reg, ok := registerFrame.(*frame.RegisterTunnel)
	if !ok {
		return nil, false
	}

	requested := reg.Subdomain
	tunnelID := uuid.New().String()

	subdomain := requested
	if subdomain != "" && !tunnel.ValidSubdomain(subdomain) {
		subdomain = ""
	}

	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		if subdomain == "" {
			random, err := tunnel.RandomSubdomain()
			if err != nil {
				return nil, false
			}
			subdomain = random
		}

		entry := tunnel.NewEntry(subdomain, tunnelID, cn)
		if err := s.registry.InsertIfAbsent(subdomain, entry); err == nil {
			_ = cn.Send(&frame.Registered{Subdomain: subdomain, TunnelID: tunnelID})
			return entry, true
		}

		if requested != "" && subdomain == requested {
			// The caller asked for this exact name; don't silently fall
			// back to a random one, let them retry explicitly.
			_ = cn.Send(&frame.Error{Code: frame.ErrSubdomainTaken, Message: "subdomain already taken"})
			return nil, false
		}
		subdomain = ""
	}

	_ = cn.Send(&frame.Error{Code: frame.ErrSubdomainTaken, Message: "could not allocate a free subdomain"})
	return nil, false
}

// teardown removes entry from the registry and fails every stream still
// open on it (spec.md §4.4 "Tunnel teardown").
func (s *Server) teardown(entry *tunnel.Entry) {
	s.registry.Delete(entry.Subdomain, entry)
	for _, st := range entry.Streams() {
		entry.RemoveStream(st.ID)
		st.CancelDeadline()
		if !st.HeadersSent() {
			_ = st.WriteHeaders(http.StatusBadGateway, http.Header{"Content-Type": []string{"text/plain"}})
			_ = st.WriteBody([]byte("Tunnel not connected"))
		}
		st.Finish()
	}
}

// readLoop dispatches frames arriving on entry's control connection for
// its lifetime. Malformed frames are logged and discarded, and unknown
// types are discarded silently, rather than closing the connection
// (spec.md §4.1).
func (s *Server) readLoop(ws *websocket.Conn, entry *tunnel.Entry) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		f, err := frame.Decode(data)
		if err != nil {
			var unknown *frame.ErrUnknownType
			if !errors.As(err, &unknown) {
				logging.GetLogger().Debug("tunnelserver: malformed frame from %s: %v", entry.Subdomain, err)
			}
			continue
		}

		switch fr := f.(type) {
		case *frame.RespStart:
			st := entry.Stream(fr.StreamID)
			if st == nil {
				continue
			}
			_ = st.WriteHeaders(fr.StatusCode, headersFromFrame(fr.Headers))

		case *frame.RespData:
			st := entry.Stream(fr.StreamID)
			if st == nil {
				continue
			}
			_ = st.WriteBody(fr.Chunk)
			entry.Stats.AddBytes(0, uint64(len(fr.Chunk)))

		case *frame.End:
			if fr.Phase != frame.PhaseRes {
				continue
			}
			st := entry.Stream(fr.StreamID)
			if st == nil {
				continue
			}
			st.CancelDeadline()
			entry.RemoveStream(fr.StreamID)
			st.Finish()

		case *frame.Ping:
			_ = entry.Conn.Send(&frame.Pong{})

		case *frame.Pong:
			// liveness only; nothing to update beyond the fact the read
			// succeeded at all.
		}
	}
}

// readFrame reads and decodes exactly one frame, used during the
// handshake before the connection's steady-state readLoop starts.
func readFrame(ws *websocket.Conn) (frame.Frame, error) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return frame.Decode(data)
}
