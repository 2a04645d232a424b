// Package transport establishes the plain TCP connection underneath a
// mail session.  It walks the resolved candidates in order, binds the
// socket according to the local binding policy, and returns the first
// connection that succeeds.
package transport

import (
	"context"
	"net"
)

// ContextDialer opens a single outbound connection.  *net.Dialer and
// the SSH jump host in package tunnel both satisfy it.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
