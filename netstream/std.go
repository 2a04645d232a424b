//go:build !mailnet_no_stdtls

package netstream

import (
	"context"
	"crypto/tls"
	"net"
)

// StdTLSEnabled reports whether the crypto/tls backend is compiled in.
func StdTLSEnabled() bool { return true }

// StdConnector performs handshakes with crypto/tls.
type StdConnector struct {
	Config *tls.Config
}

// NewStdConnector returns a connector using cfg.  ServerName in cfg is
// overwritten per handshake.
func NewStdConnector(cfg *tls.Config) *StdConnector {
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &StdConnector{Config: cfg}
}

func newStdConnector(opts TLSOptions) (Connector, error) {
	return NewStdConnector(&tls.Config{
		RootCAs:            opts.RootCAs,
		InsecureSkipVerify: opts.InsecureSkipVerify,
		MinVersion:         opts.minVersion(),
	}), nil
}

func (c *StdConnector) Backend() Backend { return BackendStd }

func (c *StdConnector) handshake(ctx context.Context, conn net.Conn, serverName string) (encrypted, error) {
	cfg := c.Config.Clone()
	cfg.ServerName = serverName

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return &stdInner{sock: conn, conn: tlsConn}, nil
}

type stdInner struct {
	sock net.Conn
	conn *tls.Conn
}

func (s *stdInner) socket() net.Conn            { return s.sock }
func (s *stdInner) Read(p []byte) (int, error)  { return s.conn.Read(p) }
func (s *stdInner) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *stdInner) backend() Backend            { return BackendStd }
func (s *stdInner) closeWrite() error           { return s.conn.CloseWrite() }
func (s *stdInner) close() error                { return s.conn.Close() }

func (s *stdInner) state() tlsState {
	cs := s.conn.ConnectionState()
	return tlsState{
		version:            cs.Version,
		cipherSuite:        cs.CipherSuite,
		serverName:         cs.ServerName,
		negotiatedProtocol: cs.NegotiatedProtocol,
		peerCertificates:   cs.PeerCertificates,
	}
}
