package tunnelclient

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconlink/beaconlink/internal/frame"
)

func TestChooseMode(t *testing.T) {
	assert.Equal(t, modeNone, chooseMode(http.MethodGet, false))
	assert.Equal(t, modeNone, chooseMode("head", false))
	assert.Equal(t, modeBuffer, chooseMode(http.MethodPost, false))
	assert.Equal(t, modeStream, chooseMode(http.MethodPost, true))
	assert.Equal(t, modeNone, chooseMode(http.MethodGet, true)) // bodyless wins regardless of forceStream
}

func TestRequestHeadersStripsAcceptEncodingByDefault(t *testing.T) {
	h := requestHeaders(map[string]string{"Accept-Encoding": "gzip", "X-Foo": "bar"}, false)
	assert.Empty(t, h.Get("Accept-Encoding"))
	assert.Equal(t, "bar", h.Get("X-Foo"))
}

func TestRequestHeadersForcesIdentity(t *testing.T) {
	h := requestHeaders(map[string]string{"Accept-Encoding": "gzip"}, true)
	assert.Equal(t, "identity", h.Get("Accept-Encoding"))
}

func TestClientStreamBufferModeAccumulates(t *testing.T) {
	cs := newClientStream(&frame.OpenStream{StreamID: 1, Method: http.MethodPost, Path: "/x"}, false)
	require.Equal(t, modeBuffer, cs.mode)

	cs.onReqData([]byte("hello, "))
	cs.onReqData([]byte("world"))
	cs.onEndReq()

	assert.Equal(t, "hello, world", cs.buf.String())
}

func TestClientStreamStreamModePipesChunks(t *testing.T) {
	cs := newClientStream(&frame.OpenStream{StreamID: 1, Method: http.MethodPost, Path: "/x"}, true)
	require.Equal(t, modeStream, cs.mode)

	done := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(cs.pr)
		done <- b
	}()

	cs.onReqData([]byte("chunk1"))
	cs.onReqData([]byte("chunk2"))
	cs.onEndReq()

	assert.Equal(t, "chunk1chunk2", string(<-done))
}
