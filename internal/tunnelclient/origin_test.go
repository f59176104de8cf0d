package tunnelclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenHeaderJoinsMultiValue(t *testing.T) {
	h := http.Header{"X-Multi": []string{"a", "b"}, "X-Single": []string{"one"}}
	out := flattenHeader(h)
	assert.Equal(t, "a, b", out["X-Multi"])
	assert.Equal(t, "one", out["X-Single"])
}

func TestFlattenHeaderSkipsEmpty(t *testing.T) {
	h := http.Header{"X-Empty": []string{}}
	out := flattenHeader(h)
	_, ok := out["X-Empty"]
	assert.False(t, ok)
}
