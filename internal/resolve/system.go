package resolve

import (
	"context"
	"net"
	"net/netip"
)

// System resolves through the host platform's resolver.
type System struct {
	// Resolver overrides net.DefaultResolver (tests, custom dial hooks).
	Resolver *net.Resolver
}

// Resolve implements Resolver.
func (s *System) Resolve(ctx context.Context, host string, port int) ([]netip.AddrPort, error) {
	if cands, ok := literal(host, port); ok {
		return cands, nil
	}

	r := s.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, resolveError(host, err)
	}
	return withPort(addrs, port), nil
}
