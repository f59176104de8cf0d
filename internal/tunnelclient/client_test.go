package tunnelclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beaconlink/beaconlink/internal/config"
)

func TestClientDomainBaseExplicitOverride(t *testing.T) {
	c := &Client{cfg: &config.ClientConfig{DomainBase: "example.com", ConnectURL: "ws://tunnels.other.net:3000/connect"}}
	assert.Equal(t, "example.com", c.domainBase())
}

func TestClientDomainBaseFromConnectURL(t *testing.T) {
	c := &Client{cfg: &config.ClientConfig{ConnectURL: "ws://tunnels.example.com:3000/connect"}}
	assert.Equal(t, "tunnels.example.com", c.domainBase())
}

func TestClientDomainBaseNoPort(t *testing.T) {
	c := &Client{cfg: &config.ClientConfig{ConnectURL: "wss://tunnels.example.com/connect"}}
	assert.Equal(t, "tunnels.example.com", c.domainBase())
}
