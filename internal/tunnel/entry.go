package tunnel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/beaconlink/beaconlink/internal/frame"
)

// FrameSender is the write side of a bound control connection. It is
// implemented by internal/tunnelserver's per-connection writer goroutine;
// keeping it as an interface here lets this package stay free of any
// WebSocket dependency, matching the teacher's separation between
// internal/tunnel (domain state) and its transport-specific servers.
type FrameSender interface {
	Send(f frame.Frame) error
}

// Stats tracks lightweight per-tunnel counters, adapted from the teacher's
// ConnectionStateManager (internal/tunnel/connection_state.go) down to the
// fields this spec actually surfaces (no queue-depth/handshake-latency
// tracking, since there is no connection pool here).
type Stats struct {
	bytesIn      atomic.Uint64
	bytesOut     atomic.Uint64
	requestCount atomic.Uint64
	lastActivity atomic.Int64
}

func newStats() *Stats {
	s := &Stats{}
	s.lastActivity.Store(time.Now().Unix())
	return s
}

// AddBytes accumulates transferred bytes and refreshes LastActivity. Either
// argument may be 0 when only one direction moved data.
func (s *Stats) AddBytes(in, out uint64) {
	if in > 0 {
		s.bytesIn.Add(in)
	}
	if out > 0 {
		s.bytesOut.Add(out)
	}
	s.lastActivity.Store(time.Now().Unix())
}

// IncRequests counts one more request handled on this tunnel.
func (s *Stats) IncRequests() { s.requestCount.Add(1) }

// Snapshot is a point-in-time copy of Stats, safe to log or serialize.
type Snapshot struct {
	BytesIn      uint64
	BytesOut     uint64
	RequestCount uint64
	LastActivity int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		BytesIn:      s.bytesIn.Load(),
		BytesOut:     s.bytesOut.Load(),
		RequestCount: s.requestCount.Load(),
		LastActivity: s.lastActivity.Load(),
	}
}

// Entry is one registered tunnel: a subdomain bound to exactly one live
// control connection (spec.md §3's registry-entry invariant). Grounded in
// the teacher's TunnelConnection (internal/tunnel/types.go) and
// GRPCTunnelServer.tunnelStreams (internal/tunnel/grpc_service.go),
// collapsed to the single-connection model spec.md requires.
type Entry struct {
	Subdomain  string
	TunnelID   string
	CreatedAt  time.Time
	Conn       FrameSender
	Stats      *Stats

	nextStreamID atomic.Uint64

	streamsMu sync.Mutex
	streams   map[uint64]*Stream
}

// NewEntry creates a registry entry bound to conn.
func NewEntry(subdomain, tunnelID string, conn FrameSender) *Entry {
	e := &Entry{
		Subdomain: subdomain,
		TunnelID:  tunnelID,
		CreatedAt: time.Now(),
		Conn:      conn,
		Stats:     newStats(),
		streams:   make(map[uint64]*Stream),
	}
	e.nextStreamID.Store(1)
	return e
}

// NextStreamID allocates the next monotonically increasing stream id for
// this tunnel (spec.md §3: "nextStreamId: monotonic counter, starts at 1").
func (e *Entry) NextStreamID() uint64 {
	return e.nextStreamID.Add(1) - 1
}

// AddStream registers s under its id.
func (e *Entry) AddStream(s *Stream) {
	e.streamsMu.Lock()
	defer e.streamsMu.Unlock()
	e.streams[s.ID] = s
}

// Stream returns the stream for id, or nil if it does not exist (already
// finished, or never opened — both are silently ignored per spec.md §7).
func (e *Entry) Stream(id uint64) *Stream {
	e.streamsMu.Lock()
	defer e.streamsMu.Unlock()
	return e.streams[id]
}

// RemoveStream deletes the stream for id.
func (e *Entry) RemoveStream(id uint64) {
	e.streamsMu.Lock()
	defer e.streamsMu.Unlock()
	delete(e.streams, id)
}

// Streams returns a snapshot slice of all live streams, used to fail them
// in bulk on control-connection teardown (spec.md §4.3 "Tunnel teardown").
func (e *Entry) Streams() []*Stream {
	e.streamsMu.Lock()
	defer e.streamsMu.Unlock()
	out := make([]*Stream, 0, len(e.streams))
	for _, s := range e.streams {
		out = append(out, s)
	}
	return out
}
