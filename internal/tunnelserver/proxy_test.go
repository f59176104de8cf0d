package tunnelserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSubdomain(t *testing.T) {
	cases := []struct {
		host, base string
		want       string
		ok         bool
	}{
		{"myapp.example.com", "example.com", "myapp", true},
		{"MyApp.Example.com", "example.com", "myapp", true},
		{"myapp.example.com:8080", "example.com", "myapp", true},
		{"example.com", "example.com", "", false},
		{"other.net", "example.com", "", false},
		{"evil_.example.com", "example.com", "", false},
	}
	for _, c := range cases {
		got, ok := extractSubdomain(c.host, c.base)
		assert.Equal(t, c.ok, ok, c.host)
		if c.ok {
			assert.Equal(t, c.want, got, c.host)
		}
	}
}

func TestExtractSubdomainRejectsNestedLabelAsNotShorterSuffix(t *testing.T) {
	// "a.b.example.com" has label "a.b", which ValidSubdomain rejects (dots
	// aren't in the allowed character class), so the whole host is refused
	// rather than silently routed to a wrong tunnel.
	_, ok := extractSubdomain("a.b.example.com", "example.com")
	assert.False(t, ok)
}
