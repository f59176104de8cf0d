// Package tunnelclient is the local half of the tunnel: it dials the
// control URL, registers a subdomain, and bridges each OPEN_STREAM it
// receives to a configured local HTTP origin (spec.md §4.2). Grounded in
// the teacher's internal/tunnel/handlers/http.go and grpc_client.go,
// rebuilt around the frame/WebSocket transport instead of gRPC.
package tunnelclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/beaconlink/beaconlink/internal/frame"
	"github.com/beaconlink/beaconlink/internal/tunnel"
)

// originDialTimeout bounds the TCP connect to the local origin, separate
// from the overall request timeout (which the server's stream deadline
// already owns end to end).
const originDialTimeout = 5 * time.Second

// httpOriginClient forwards client streams to one fixed local HTTP origin.
// Grounded in the teacher's HTTPHandler (internal/tunnel/handlers/http.go),
// generalized from a one-shot request/response copy to the frame protocol's
// async RESP_START/RESP_DATA/END sequence.
type httpOriginClient struct {
	localAddr string
	client    *http.Client
}

func newHTTPOriginClient(localAddr string, _ bool) *httpOriginClient {
	return &httpOriginClient{
		localAddr: localAddr,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
					d := net.Dialer{Timeout: originDialTimeout}
					return d.DialContext(ctx, network, localAddr)
				},
				// Bytes on the wire must match the declared content-encoding
				// (spec.md §4.2); the origin's own compression choice is
				// forwarded untouched, never undone here.
				DisableCompression: true,
			},
		},
	}
}

// forward issues one outbound request to the origin and streams the
// response back over cn as RESP_START/RESP_DATA/END frames (spec.md §4.2
// "Response path"). body may be nil (bodyless methods).
func (o *httpOriginClient) forward(cn *conn, cs *clientStream, headers http.Header, body io.Reader, contentLength int64) {
	req, err := http.NewRequest(cs.method, "http://"+o.localAddr+cs.path, body)
	if err != nil {
		o.sendError(cn, cs)
		return
	}
	req.Header = headers
	if contentLength >= 0 {
		req.ContentLength = contentLength
	}

	resp, err := o.client.Do(req)
	if err != nil {
		o.sendError(cn, cs)
		return
	}
	defer resp.Body.Close()

	if err := cn.Send(&frame.RespStart{
		TunnelID:   cs.tunnelID,
		StreamID:   cs.id,
		StatusCode: resp.StatusCode,
		Headers:    flattenHeader(resp.Header),
	}); err != nil {
		return
	}

	buf := tunnel.GetChunkBuf()
	defer tunnel.PutChunkBuf(buf)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := cn.Send(&frame.RespData{TunnelID: cs.tunnelID, StreamID: cs.id, Chunk: chunk}); err != nil {
				return
			}
		}
		if readErr != nil {
			break
		}
	}

	_ = cn.Send(&frame.End{TunnelID: cs.tunnelID, StreamID: cs.id, Phase: frame.PhaseRes, StatusCode: resp.StatusCode})
}

// sendError reports a failed origin request as spec.md §4.2 requires:
// RESP_START 502 immediately followed by END phase=res, never partial
// headers followed by a retroactive error.
func (o *httpOriginClient) sendError(cn *conn, cs *clientStream) {
	_ = cn.Send(&frame.RespStart{TunnelID: cs.tunnelID, StreamID: cs.id, StatusCode: http.StatusBadGateway})
	_ = cn.Send(&frame.End{TunnelID: cs.tunnelID, StreamID: cs.id, Phase: frame.PhaseRes, StatusCode: http.StatusBadGateway})
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		val := v[0]
		for _, extra := range v[1:] {
			val += ", " + extra
		}
		out[k] = val
	}
	return out
}
