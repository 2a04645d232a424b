// Package resolve turns a host/port pair into the ordered list of
// candidate socket addresses the dialer walks through.
//
// Resolution itself is delegated: System uses the platform resolver and
// DNS queries one configured server directly.  Neither reorders what the
// resolver returned; Filter is the only post-processing step.
package resolve

import (
	"context"
	"net/netip"

	ncerr "mailnet/internal/errors"
)

// Resolver produces candidate addresses for host:port.  An empty result
// with a nil error means the name exists but has no usable addresses.
type Resolver interface {
	Resolve(ctx context.Context, host string, port int) ([]netip.AddrPort, error)
}

// literal returns host as a single candidate when it is an IP address.
func literal(host string, port int) ([]netip.AddrPort, bool) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil, false
	}
	return []netip.AddrPort{netip.AddrPortFrom(addr.Unmap(), uint16(port))}, true
}

func resolveError(host string, err error) error {
	return ncerr.Connection("resolve", host, err)
}

// withPort attaches port to every address, unmapping IPv4-in-IPv6 so
// family checks see the real family.
func withPort(addrs []netip.Addr, port int) []netip.AddrPort {
	out := make([]netip.AddrPort, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, netip.AddrPortFrom(a.Unmap(), uint16(port)))
	}
	return out
}

// Filter keeps the candidates whose address family matches local.  With
// no local address every candidate is eligible.  Order is preserved.
func Filter(candidates []netip.AddrPort, local netip.Addr) []netip.AddrPort {
	if !local.IsValid() {
		return candidates
	}
	want4 := local.Unmap().Is4()
	out := make([]netip.AddrPort, 0, len(candidates))
	for _, c := range candidates {
		if c.Addr().Unmap().Is4() == want4 {
			out = append(out, c)
		}
	}
	return out
}
