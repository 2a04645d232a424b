package netstream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"golang.org/x/net/idna"

	ncerr "mailnet/internal/errors"
)

// Backend identifies a TLS implementation.
type Backend int

const (
	BackendNone Backend = iota
	// BackendStd is crypto/tls.
	BackendStd
	// BackendUTLS is github.com/refraction-networking/utls, which can
	// present a browser-shaped ClientHello.
	BackendUTLS
)

func (b Backend) String() string {
	switch b {
	case BackendStd:
		return "std"
	case BackendUTLS:
		return "utls"
	default:
		return "none"
	}
}

// ParseBackend maps a configuration name to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", "std", "crypto/tls":
		return BackendStd, nil
	case "utls":
		return BackendUTLS, nil
	default:
		return BackendNone, fmt.Errorf("unknown TLS backend %q (want std or utls)", name)
	}
}

// Enabled reports whether b was compiled into this build.
func (b Backend) Enabled() bool {
	switch b {
	case BackendStd:
		return StdTLSEnabled()
	case BackendUTLS:
		return UTLSEnabled()
	default:
		return false
	}
}

func anyBackendEnabled() bool {
	return StdTLSEnabled() || UTLSEnabled()
}

// TLSOptions describe a TLS client independently of the backend that
// will implement it.
type TLSOptions struct {
	Backend            Backend
	RootCAs            *x509.CertPool // nil uses the system roots
	InsecureSkipVerify bool
	MinVersion         uint16 // defaults to TLS 1.2

	// ClientHello names the utls fingerprint: chrome, firefox, edge,
	// safari, ios, randomized or golang.  Ignored by BackendStd.
	ClientHello string
}

func (o TLSOptions) minVersion() uint16 {
	if o.MinVersion == 0 {
		return tls.VersionTLS12
	}
	return o.MinVersion
}

// Connector performs the handshake for exactly one backend.  The set of
// implementations is closed: *StdConnector and *UTLSConnector, each
// present only when its backend is compiled in.
type Connector interface {
	Backend() Backend
	handshake(ctx context.Context, conn net.Conn, serverName string) (encrypted, error)
}

// TLSParameters pair the domain to validate against with the connector
// that will perform the handshake.
type TLSParameters struct {
	domain    string
	connector Connector
}

// NewTLSParameters builds parameters for domain using the backend named
// in opts.  Selecting a backend that was excluded from the build is an
// error here rather than at upgrade time.
func NewTLSParameters(domain string, opts TLSOptions) (*TLSParameters, error) {
	var (
		c   Connector
		err error
	)
	switch opts.Backend {
	case BackendStd:
		c, err = newStdConnector(opts)
	case BackendUTLS:
		c, err = newUTLSConnector(opts)
	default:
		err = fmt.Errorf("no TLS backend selected")
	}
	if err != nil {
		return nil, err
	}
	return &TLSParameters{domain: domain, connector: c}, nil
}

// NewTLSParametersWith wraps an explicitly built connector.
func NewTLSParametersWith(domain string, c Connector) *TLSParameters {
	return &TLSParameters{domain: domain, connector: c}
}

// Domain returns the name the peer certificate is validated against.
func (p *TLSParameters) Domain() string { return p.domain }

// Backend returns the backend the parameters select.
func (p *TLSParameters) Backend() Backend {
	if p == nil || p.connector == nil {
		return BackendNone
	}
	return p.connector.Backend()
}

var lookupProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.VerifyDNSLength(true),
)

// serverName validates domain and returns the form sent on the wire:
// IP literals unchanged, names converted to their ASCII (punycode) form.
func serverName(domain string) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("empty domain")
	}
	if _, err := netip.ParseAddr(domain); err == nil {
		return domain, nil
	}
	ascii, err := lookupProfile.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("domain isn't a valid DNS name: %w", err)
	}
	return ascii, nil
}

func errBackendDisabled(b Backend) error {
	return fmt.Errorf("%s: %w", b, ncerr.ErrBackendMissing)
}
