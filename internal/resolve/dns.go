package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DefaultDNSTimeout bounds each query sent by a DNS resolver.
const DefaultDNSTimeout = 5 * time.Second

// DNS resolves by querying a single DNS server directly, bypassing the
// platform resolver.  A records are returned before AAAA records, each
// in answer order.
type DNS struct {
	Server  string // "host:port"; port 53 is assumed when omitted
	Timeout time.Duration
}

// Resolve implements Resolver.
func (d *DNS) Resolve(ctx context.Context, host string, port int) ([]netip.AddrPort, error) {
	if cands, ok := literal(host, port); ok {
		return cands, nil
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return nil, resolveError(host, fmt.Errorf("invalid domain name"))
	}

	// One family failing still yields the other's answers, as the
	// platform resolver does.
	var (
		addrs    []netip.Addr
		firstErr error
	)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		found, err := d.query(ctx, host, qtype)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		addrs = append(addrs, found...)
	}
	if len(addrs) == 0 && firstErr != nil {
		return nil, resolveError(host, firstErr)
	}
	return withPort(addrs, port), nil
}

func (d *DNS) server() string {
	if _, _, err := net.SplitHostPort(d.Server); err == nil {
		return d.Server
	}
	return net.JoinHostPort(d.Server, "53")
}

func (d *DNS) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultDNSTimeout
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	client := &dns.Client{Net: "udp", Timeout: timeout}
	resp, _, err := client.ExchangeContext(ctx, msg, d.server())
	if err == nil && resp.Truncated {
		client.Net = "tcp"
		resp, _, err = client.ExchangeContext(ctx, msg, d.server())
	}
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", dns.TypeToString[qtype], err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		// NXDOMAIN on AAAA alone is common for v4-only names.
		if qtype == dns.TypeAAAA {
			return nil, nil
		}
		return nil, fmt.Errorf("no such host")
	default:
		return nil, fmt.Errorf("%s query: server returned %s",
			dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}

	var out []netip.Addr
	for _, rr := range resp.Answer {
		var ip net.IP
		switch rec := rr.(type) {
		case *dns.A:
			ip = rec.A
		case *dns.AAAA:
			ip = rec.AAAA
		default:
			continue // CNAME chain entries
		}
		if a, ok := netip.AddrFromSlice(ip); ok {
			out = append(out, a)
		}
	}
	return out, nil
}
