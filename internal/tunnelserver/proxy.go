package tunnelserver

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/beaconlink/beaconlink/internal/frame"
	"github.com/beaconlink/beaconlink/internal/logging"
	"github.com/beaconlink/beaconlink/internal/tunnel"
)

// bodylessMethods never carry a request body to forward (spec.md §4.3
// "Public-request handling").
var bodylessMethods = map[string]bool{http.MethodGet: true, http.MethodHead: true}

// handlePublic proxies one public HTTP request through its tunnel's control
// connection (spec.md §4.3). Registered as gin's catch-all route.
func (s *Server) handlePublic(c *gin.Context) {
	subdomain, ok := extractSubdomain(c.Request.Host, s.domainBase)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	entry := s.registry.Get(subdomain)
	if entry == nil {
		c.String(http.StatusBadGateway, "Tunnel not connected")
		return
	}

	rawConn, bufrw, err := c.Writer.Hijack()
	if err != nil {
		c.String(http.StatusInternalServerError, "proxy error")
		return
	}

	streamID := entry.NextStreamID()
	st := tunnel.NewStream(streamID, entry, c.Request.Method, c.Request.URL.RequestURI(), rawConn, bufrw.Writer)
	entry.AddStream(st)
	entry.Stats.IncRequests()

	st.ArmDeadline(func() {
		entry.RemoveStream(streamID)
		if !st.HeadersSent() {
			_ = st.WriteHeaders(http.StatusGatewayTimeout, http.Header{"Content-Type": []string{"text/plain"}})
			_ = st.WriteBody([]byte("tunnel request timed out"))
		}
		st.Finish()
	})

	path := c.Request.URL.RequestURI()
	if err := entry.Conn.Send(&frame.OpenStream{
		TunnelID: entry.TunnelID,
		StreamID: streamID,
		Method:   c.Request.Method,
		Path:     path,
		Headers:  headersToFrame(c.Request.Header),
	}); err != nil {
		entry.RemoveStream(streamID)
		st.Finish()
		return
	}

	s.forwardRequestBody(entry, st, c.Request)
}

// forwardRequestBody streams the public request body to the client as
// REQ_DATA chunks, terminated by END phase=req (spec.md §4.3). Bodyless
// methods skip straight to the terminal END.
func (s *Server) forwardRequestBody(entry *tunnel.Entry, st *tunnel.Stream, r *http.Request) {
	if bodylessMethods[r.Method] || r.Body == nil {
		_ = entry.Conn.Send(&frame.End{TunnelID: entry.TunnelID, StreamID: st.ID, Phase: frame.PhaseReq})
		return
	}
	defer r.Body.Close()

	buf := tunnel.GetChunkBuf()
	defer tunnel.PutChunkBuf(buf)
	var sent uint64
	for {
		n, err := r.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sendErr := entry.Conn.Send(&frame.ReqData{TunnelID: entry.TunnelID, StreamID: st.ID, Chunk: chunk}); sendErr != nil {
				return
			}
			sent += uint64(n)
		}
		if err != nil {
			if err != io.EOF {
				logging.GetLogger().Debug("tunnelserver: request body read error: %v", err)
			}
			break
		}
	}
	entry.Stats.AddBytes(sent, 0)
	_ = entry.Conn.Send(&frame.End{TunnelID: entry.TunnelID, StreamID: st.ID, Phase: frame.PhaseReq})
}

// extractSubdomain derives the tunnel subdomain from a Host header
// (spec.md §4.3 "Subdomain extraction").
func extractSubdomain(host, domainBase string) (string, bool) {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}

	suffix := "." + domainBase
	if host == domainBase || !strings.HasSuffix(host, suffix) {
		return "", false
	}

	label := strings.TrimSuffix(host, suffix)
	if !tunnel.ValidSubdomain(label) {
		return "", false
	}
	return label, true
}
