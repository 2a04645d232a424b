package netstream

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	ncerr "mailnet/internal/errors"
	"mailnet/internal/metrics"
	"mailnet/internal/resolve"
	"mailnet/internal/transport"
	"mailnet/util"
)

// ConnectOptions configure Connect.  The zero value dials through the
// platform resolver, blocks indefinitely, binds nothing and stays plain.
type ConnectOptions struct {
	// Timeout bounds each candidate's connect.
	Timeout time.Duration

	// LocalAddr selects the source address and restricts candidates to
	// its family.
	LocalAddr netip.Addr

	// TLS, when set, upgrades the stream immediately after connecting
	// (implicit TLS).
	TLS *TLSParameters

	Resolver resolve.Resolver
	Forward  transport.ContextDialer

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Connect dials server ("host:port") and returns a plain or, when
// opts.TLS is set, encrypted stream.
func Connect(ctx context.Context, server string, opts ConnectOptions) (*Stream, error) {
	host, portStr, err := net.SplitHostPort(server)
	if err != nil {
		return nil, ncerr.Connection("resolve", server, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, ncerr.Connection("resolve", server, fmt.Errorf("invalid port %q", portStr))
	}

	d := &transport.Dialer{
		Timeout:   opts.Timeout,
		LocalAddr: opts.LocalAddr,
		Resolver:  opts.Resolver,
		Forward:   opts.Forward,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	}
	conn, err := d.Connect(ctx, host, port)
	if err != nil {
		return nil, err
	}

	s := New(conn, WithMetrics(opts.Metrics))
	if opts.Logger != nil {
		s.logger = opts.Logger
	}
	if opts.TLS == nil {
		return s, nil
	}

	if err := s.Upgrade(ctx, opts.TLS); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
