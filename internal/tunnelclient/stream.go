package tunnelclient

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/beaconlink/beaconlink/internal/frame"
)

// mode selects how a stream's request body reaches the local origin
// (spec.md §4.2 "Per-stream handling").
type mode int

const (
	// modeNone is used for bodyless methods: no REQ_DATA will ever arrive.
	modeNone mode = iota
	// modeBuffer collects REQ_DATA chunks until END phase=req, then issues
	// the request with a fixed content-length.
	modeBuffer
	// modeStream issues the request immediately with a piped body, fed as
	// REQ_DATA chunks arrive.
	modeStream
)

var bodylessMethods = map[string]bool{http.MethodGet: true, http.MethodHead: true}

// chooseMode implements spec.md §4.2's mode selection.
func chooseMode(method string, forceStream bool) mode {
	if bodylessMethods[strings.ToUpper(method)] {
		return modeNone
	}
	if forceStream {
		return modeStream
	}
	return modeBuffer
}

// clientStream is one OPEN_STREAM's local-side state.
type clientStream struct {
	id       uint64
	tunnelID string
	method   string
	path     string
	headers  map[string]string
	mode     mode

	buf *bytes.Buffer // modeBuffer only

	pr *io.PipeReader // modeStream only
	pw *io.PipeWriter // modeStream only
}

func newClientStream(o *frame.OpenStream, forceStream bool) *clientStream {
	cs := &clientStream{
		id:       o.StreamID,
		tunnelID: o.TunnelID,
		method:   o.Method,
		path:     o.Path,
		headers:  o.Headers,
		mode:     chooseMode(o.Method, forceStream),
	}
	switch cs.mode {
	case modeBuffer:
		cs.buf = &bytes.Buffer{}
	case modeStream:
		cs.pr, cs.pw = io.Pipe()
	}
	return cs
}

// onReqData feeds one REQ_DATA chunk into the stream's body.
func (cs *clientStream) onReqData(chunk []byte) {
	switch cs.mode {
	case modeBuffer:
		cs.buf.Write(chunk)
	case modeStream:
		if cs.pw != nil {
			_, _ = cs.pw.Write(chunk)
		}
	}
}

// onEndReq finalizes the request body on END phase=req.
func (cs *clientStream) onEndReq() {
	if cs.mode == modeStream && cs.pw != nil {
		cs.pw.Close()
	}
}

// requestHeaders builds the outbound http.Header from the OPEN_STREAM's
// header map, applying spec.md §4.2's accept-encoding rule.
func requestHeaders(raw map[string]string, forceIdentity bool) http.Header {
	h := make(http.Header, len(raw))
	for k, v := range raw {
		h.Set(k, v)
	}
	if forceIdentity {
		h.Set("Accept-Encoding", "identity")
	} else {
		h.Del("Accept-Encoding")
	}
	return h
}
