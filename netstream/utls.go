//go:build !mailnet_no_utls

package netstream

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// UTLSEnabled reports whether the utls backend is compiled in.
func UTLSEnabled() bool { return true }

// UTLSConnector performs handshakes with utls, presenting the
// ClientHello of Hello.
type UTLSConnector struct {
	Config *utls.Config
	Hello  utls.ClientHelloID
}

var clientHelloIDs = map[string]utls.ClientHelloID{
	"chrome":     utls.HelloChrome_Auto,
	"firefox":    utls.HelloFirefox_Auto,
	"edge":       utls.HelloEdge_Auto,
	"safari":     utls.HelloSafari_Auto,
	"ios":        utls.HelloIOS_Auto,
	"randomized": utls.HelloRandomized,
	"golang":     utls.HelloGolang,
}

// ClientHelloID maps a fingerprint name to a utls ClientHelloID.  The
// empty name selects chrome.
func ClientHelloID(name string) (utls.ClientHelloID, error) {
	if name == "" {
		return utls.HelloChrome_Auto, nil
	}
	id, ok := clientHelloIDs[strings.ToLower(name)]
	if !ok {
		return utls.ClientHelloID{}, fmt.Errorf("unknown ClientHello fingerprint %q", name)
	}
	return id, nil
}

func newUTLSConnector(opts TLSOptions) (Connector, error) {
	id, err := ClientHelloID(opts.ClientHello)
	if err != nil {
		return nil, err
	}
	return &UTLSConnector{
		Config: &utls.Config{
			RootCAs:            opts.RootCAs,
			InsecureSkipVerify: opts.InsecureSkipVerify,
			MinVersion:         opts.minVersion(),
		},
		Hello: id,
	}, nil
}

func (c *UTLSConnector) Backend() Backend { return BackendUTLS }

func (c *UTLSConnector) handshake(ctx context.Context, conn net.Conn, serverName string) (encrypted, error) {
	cfg := &utls.Config{}
	if c.Config != nil {
		cfg = c.Config.Clone()
	}
	cfg.ServerName = serverName

	uconn := utls.UClient(conn, cfg, c.Hello)
	// SNI must not carry an IP literal; certificate verification still
	// uses cfg.ServerName.  HelloGolang already omits it.
	if _, err := netip.ParseAddr(serverName); err == nil && c.Hello != utls.HelloGolang {
		if err := uconn.RemoveSNIExtension(); err != nil {
			return nil, err
		}
	}
	if err := uconn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return &utlsInner{sock: conn, conn: uconn}, nil
}

type utlsInner struct {
	sock net.Conn
	conn *utls.UConn
}

func (u *utlsInner) socket() net.Conn            { return u.sock }
func (u *utlsInner) Read(p []byte) (int, error)  { return u.conn.Read(p) }
func (u *utlsInner) Write(p []byte) (int, error) { return u.conn.Write(p) }
func (u *utlsInner) backend() Backend            { return BackendUTLS }
func (u *utlsInner) closeWrite() error           { return u.conn.CloseWrite() }
func (u *utlsInner) close() error                { return u.conn.Close() }

func (u *utlsInner) state() tlsState {
	cs := u.conn.ConnectionState()
	return tlsState{
		version:            cs.Version,
		cipherSuite:        cs.CipherSuite,
		serverName:         cs.ServerName,
		negotiatedProtocol: cs.NegotiatedProtocol,
		peerCertificates:   cs.PeerCertificates,
	}
}
