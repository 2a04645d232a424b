package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"time"

	ncerr "mailnet/internal/errors"
	"mailnet/internal/metrics"
	"mailnet/internal/resolve"
	"mailnet/util"
)

// Dialer connects to the first reachable candidate of a resolved host.
// The zero value dials through the platform resolver with no timeout
// and no explicit source address.
type Dialer struct {
	// Timeout bounds each candidate's connect; 0 blocks indefinitely.
	Timeout time.Duration

	// LocalAddr, when valid, is bound (port 0) before connecting and
	// restricts candidates to its address family.
	LocalAddr netip.Addr

	// Resolver defaults to resolve.System.
	Resolver resolve.Resolver

	// Forward, when set, carries every candidate dial instead of a
	// local socket (SSH jump host).  No binding is applied.
	Forward ContextDialer

	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (d *Dialer) logger() *util.Logger {
	if d.Logger == nil {
		return util.NopLogger()
	}
	return d.Logger
}

// Connect resolves host, filters the candidates by the local address
// family, and dials them in order.
func (d *Dialer) Connect(ctx context.Context, host string, port int) (net.Conn, error) {
	r := d.Resolver
	if r == nil {
		r = &resolve.System{}
	}

	candidates, err := r.Resolve(ctx, host, port)
	if err != nil {
		d.Metrics.RecordError(err.Error())
		return nil, err
	}

	eligible := resolve.Filter(candidates, d.LocalAddr)
	d.logger().Debug("%s resolved to %d candidate(s), %d eligible",
		host, len(candidates), len(eligible))

	return d.DialCandidates(ctx, eligible)
}

// DialCandidates tries each candidate once, strictly in order, and
// returns the first connection that succeeds.  When every candidate
// fails the error wraps the last failure; an empty list reports that
// nothing could be resolved.
func (d *Dialer) DialCandidates(ctx context.Context, candidates []netip.AddrPort) (net.Conn, error) {
	log := d.logger()

	var (
		lastErr  error
		lastAddr string
	)
	for _, c := range candidates {
		addr := c.String()
		d.Metrics.DialAttempt()
		log.Debug("dialing candidate %s", addr)

		conn, err := d.dialOne(ctx, c)
		if err == nil {
			d.Metrics.ConnectionOpened()
			log.Verbose("connected to %s", addr)
			return conn, nil
		}

		d.Metrics.DialFailed()
		if isBindError(err) {
			d.Metrics.RecordError(err.Error())
			return nil, ncerr.Connection("bind", d.LocalAddr.String(), err)
		}
		log.WithField("candidate", addr).Tracef("connect failed: %v", err)
		lastErr, lastAddr = err, addr

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		d.Metrics.RecordError(ncerr.ErrNoAddress.Error())
		return nil, ncerr.Connection("dial", "", ncerr.ErrNoAddress)
	}
	d.Metrics.RecordError(lastErr.Error())
	return nil, ncerr.Connection("dial", lastAddr, lastErr)
}

func (d *Dialer) dialOne(ctx context.Context, c netip.AddrPort) (net.Conn, error) {
	if d.Forward != nil {
		if d.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.Timeout)
			defer cancel()
		}
		return d.Forward.DialContext(ctx, "tcp", c.String())
	}

	network := "tcp6"
	if c.Addr().Unmap().Is4() {
		network = "tcp4"
	}

	nd := &net.Dialer{Timeout: d.Timeout}
	if la := localBindAddr(c, d.LocalAddr); la != nil {
		nd.LocalAddr = la
	}
	return nd.DialContext(ctx, network, c.String())
}

// isBindError reports whether err came from binding the local address
// rather than from connecting.
func isBindError(err error) bool {
	var se *os.SyscallError
	return errors.As(err, &se) && se.Syscall == "bind"
}
