package tunnelserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadersFromFrameStripsHopByHop(t *testing.T) {
	h := headersFromFrame(map[string]string{
		"Content-Type":      "text/plain",
		"Transfer-Encoding": "chunked",
		"Connection":        "keep-alive",
		"Keep-Alive":        "timeout=5",
		"X-Custom":          "value",
	})

	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Equal(t, "value", h.Get("X-Custom"))
	assert.Empty(t, h.Get("Transfer-Encoding"))
	assert.Empty(t, h.Get("Connection"))
	assert.Empty(t, h.Get("Keep-Alive"))
}

func TestHeadersFromFrameCaseInsensitive(t *testing.T) {
	h := headersFromFrame(map[string]string{
		"transfer-encoding": "chunked",
		"CONNECTION":        "close",
	})
	assert.Empty(t, h.Get("Transfer-Encoding"))
	assert.Empty(t, h.Get("Connection"))
}

func TestHeadersToFrameJoinsMultiValue(t *testing.T) {
	h := make(map[string][]string)
	h["Accept"] = []string{"text/html", "application/json"}
	out := headersToFrame(h)
	assert.Equal(t, "text/html, application/json", out["Accept"])
}
