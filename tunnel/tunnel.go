// Package tunnel reaches mail servers through an SSH jump host.  A
// JumpHost plugs into the transport dialer as its forward dialer, so
// every resolved candidate is connected from the gateway instead of
// from the local machine.
package tunnel

import (
	"net"
	"strconv"
	"time"
)

// Config holds everything needed to reach an SSH gateway.
type Config struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// Addr returns the gateway address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
