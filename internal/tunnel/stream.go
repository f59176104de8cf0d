package tunnel

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// StreamDeadline is the abandon-after window for a public request that
// never gets a server-side response (spec.md §4.3, scenario 6).
const StreamDeadline = 30 * time.Second

// Stream is the server-side state for one multiplexed request/response
// pair (spec.md §3's "Per-stream state (server side)"). It wraps the
// hijacked public connection so RESP_START/RESP_DATA/END frames can drive
// it asynchronously, long after the originating HTTP handler returned.
// Grounded in the teacher's raw-socket response path
// (internal/tunnel/server.go ProxyConnection/writeHTTPError) generalized
// from one-shot read/write to incremental streaming.
type Stream struct {
	ID     uint64
	Entry  *Entry
	Method string
	Path   string

	conn net.Conn
	bufw *bufio.Writer

	mu          sync.Mutex
	headersSent bool
	finished    bool
	deadline    *time.Timer
}

// NewStream wraps a hijacked connection for stream id on entry.
func NewStream(id uint64, entry *Entry, method, path string, conn net.Conn, bufw *bufio.Writer) *Stream {
	return &Stream{
		ID:     id,
		Entry:  entry,
		Method: method,
		Path:   path,
		conn:   conn,
		bufw:   bufw,
	}
}

// ArmDeadline starts the abandonment timer; onExpire fires at most once,
// and not at all if CancelDeadline runs first.
func (s *Stream) ArmDeadline(onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.deadline = time.AfterFunc(StreamDeadline, onExpire)
}

// CancelDeadline stops the abandonment timer, called once END phase=res
// arrives (spec.md §4.3 "Deadline").
func (s *Stream) CancelDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline != nil {
		s.deadline.Stop()
	}
}

// HeadersSent reports whether WriteHeaders already ran, used by the
// deadline handler and teardown to decide between a 504/502 response and
// a silent connection drop (spec.md §4.3/§4.4).
func (s *Stream) HeadersSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headersSent
}

// Finished reports whether the stream has already been torn down, so
// callers racing the deadline timer against a normal END can no-op.
func (s *Stream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// WriteHeaders writes the status line and headers exactly once (spec.md
// §4.3: "idempotent guard on headersSent"). headers must already have
// hop-by-hop fields stripped by the caller (internal/tunnelserver, which
// owns the header-map vocabulary). The response is always framed as
// Connection: close, since hand-rolled writes over a hijacked connection
// have no reliable way to announce a body length up front.
func (s *Stream) WriteHeaders(statusCode int, headers http.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headersSent || s.finished {
		return nil
	}
	s.headersSent = true

	statusText := http.StatusText(statusCode)
	if statusText == "" {
		statusText = "Status"
	}
	if _, err := fmt.Fprintf(s.bufw, "HTTP/1.1 %d %s\r\n", statusCode, statusText); err != nil {
		return err
	}
	headers.Set("Connection", "close")
	if err := headers.Write(s.bufw); err != nil {
		return err
	}
	if _, err := s.bufw.WriteString("\r\n"); err != nil {
		return err
	}
	return s.bufw.Flush()
}

// WriteBody forwards one RESP_DATA chunk's bytes to the public caller.
func (s *Stream) WriteBody(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || len(chunk) == 0 {
		return nil
	}
	if _, err := s.bufw.Write(chunk); err != nil {
		return err
	}
	return s.bufw.Flush()
}

// Finish closes the hijacked connection and marks the stream terminal.
// Safe to call more than once.
func (s *Stream) Finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	if s.deadline != nil {
		s.deadline.Stop()
	}
	s.mu.Unlock()

	s.conn.Close()
}
