// Package netstream is the connection handle a mail client talks
// through.  A Stream owns one socket and is either plain or encrypted by
// one of the compiled-in TLS backends; the protocol layer above reads
// and writes it the same way in every state.
//
// A Stream is owned by one goroutine at a time.  Upgrade replaces the
// handle's internal state in place, so callers sharing a Stream must
// serialise access themselves.
package netstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	ncerr "mailnet/internal/errors"
	"mailnet/internal/metrics"
	"mailnet/util"
)

// Shutdown selects which half of the transport to shut down.
type Shutdown int

const (
	ShutdownRead Shutdown = iota
	ShutdownWrite
	ShutdownBoth
)

func (h Shutdown) String() string {
	switch h {
	case ShutdownRead:
		return "read"
	case ShutdownWrite:
		return "write"
	default:
		return "both"
	}
}

// inner is the closed set of transport variants a Stream can hold:
// *plainInner or one encrypted variant per compiled-in backend.  A nil
// inner is the transient empty state that exists only inside Upgrade.
type inner interface {
	socket() net.Conn
}

type plainInner struct {
	conn net.Conn
}

func (p *plainInner) socket() net.Conn { return p.conn }

// encrypted is implemented by each backend's variant.
type encrypted interface {
	inner
	io.ReadWriter
	backend() Backend
	state() tlsState
	closeWrite() error
	close() error
}

// tlsState is the backend-neutral subset of a connection state.
type tlsState struct {
	version            uint16
	cipherSuite        uint16
	serverName         string
	negotiatedProtocol string
	peerCertificates   []*x509.Certificate
}

const emptyStatePanic = "netstream: stream observed in the transient empty state"

// Stream is a plain or encrypted connection to a mail server.
type Stream struct {
	inner inner

	readTimeout  time.Duration
	writeTimeout time.Duration

	logger  *util.Logger
	metrics *metrics.Collector
	closed  atomic.Bool
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger routes the stream's debug output to l.
func WithLogger(l *util.Logger) Option { return func(s *Stream) { s.logger = l } }

// WithMetrics counts the stream's traffic and upgrades in m.
func WithMetrics(m *metrics.Collector) Option { return func(s *Stream) { s.metrics = m } }

// New wraps an established plain connection.
func New(conn net.Conn, opts ...Option) *Stream {
	if conn == nil {
		panic("netstream: New called with a nil connection")
	}
	s := &Stream{inner: &plainInner{conn: conn}, logger: util.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// current returns the active variant.  Observing the empty state means
// Upgrade leaked it, which no valid call sequence can do.
func (s *Stream) current() inner {
	if s.inner == nil {
		panic(emptyStatePanic)
	}
	return s.inner
}

// PeerAddr returns the remote address of the underlying socket.
func (s *Stream) PeerAddr() net.Addr { return s.current().socket().RemoteAddr() }

// LocalAddr returns the local address of the underlying socket.
func (s *Stream) LocalAddr() net.Addr { return s.current().socket().LocalAddr() }

// Shutdown shuts down one or both halves of the underlying socket.  TLS
// session state is left alone.
func (s *Stream) Shutdown(how Shutdown) error {
	return shutdownConn(s.current().socket(), how)
}

type closeReader interface{ CloseRead() error }
type closeWriter interface{ CloseWrite() error }

func shutdownConn(c net.Conn, how Shutdown) error {
	cr, canRead := c.(closeReader)
	cw, canWrite := c.(closeWriter)
	switch {
	case how == ShutdownRead && canRead:
		return cr.CloseRead()
	case how == ShutdownWrite && canWrite:
		return cw.CloseWrite()
	case how == ShutdownBoth && canRead && canWrite:
		return ncerr.Join(cr.CloseRead(), cw.CloseWrite())
	case how == ShutdownBoth:
		return c.Close()
	}
	return fmt.Errorf("shutdown %s on %T: %w", how, c, ncerr.ErrUnsupported)
}

// SetReadTimeout bounds every subsequent Read by d.  Zero removes the
// limit, so reads block until data arrives.
func (s *Stream) SetReadTimeout(d time.Duration) error {
	sock := s.current().socket()
	if d < 0 {
		return ncerr.Client("set-read-timeout", fmt.Errorf("negative timeout %s", d))
	}
	s.readTimeout = d
	if d == 0 {
		return sock.SetReadDeadline(time.Time{})
	}
	return nil
}

// SetWriteTimeout bounds every subsequent Write by d.  Zero removes the
// limit.
func (s *Stream) SetWriteTimeout(d time.Duration) error {
	sock := s.current().socket()
	if d < 0 {
		return ncerr.Client("set-write-timeout", fmt.Errorf("negative timeout %s", d))
	}
	s.writeTimeout = d
	if d == 0 {
		return sock.SetWriteDeadline(time.Time{})
	}
	return nil
}

// IsEncrypted reports whether the stream has been upgraded.
func (s *Stream) IsEncrypted() bool {
	switch s.current().(type) {
	case *plainInner:
		return false
	case encrypted:
		return true
	}
	panic(fmt.Sprintf("netstream: unknown variant %T", s.inner))
}

// Backend returns the active TLS backend, or BackendNone when plain.
func (s *Stream) Backend() Backend {
	if enc, ok := s.current().(encrypted); ok {
		return enc.backend()
	}
	return BackendNone
}

// PeerCertificate returns the DER encoding of the first certificate the
// server presented.  Calling it on a plain stream is a usage error.
func (s *Stream) PeerCertificate() ([]byte, error) {
	switch v := s.current().(type) {
	case *plainInner:
		return nil, ncerr.Client("peer-certificate", ncerr.ErrNotEncrypted)
	case encrypted:
		certs := v.state().peerCertificates
		if len(certs) == 0 {
			panic("netstream: completed TLS handshake left no peer certificate chain")
		}
		if len(certs[0].Raw) == 0 {
			return nil, ncerr.TLS("peer-certificate", fmt.Errorf("certificate has no DER encoding"))
		}
		return bytes.Clone(certs[0].Raw), nil
	}
	panic(fmt.Sprintf("netstream: unknown variant %T", s.inner))
}

// TLSInfo summarises the negotiated session.
type TLSInfo struct {
	Backend            Backend
	Version            string
	CipherSuite        string
	ServerName         string
	NegotiatedProtocol string
}

// TLSInfo describes the encrypted session; plain streams report a usage
// error.
func (s *Stream) TLSInfo() (TLSInfo, error) {
	enc, ok := s.current().(encrypted)
	if !ok {
		return TLSInfo{}, ncerr.Client("tls-info", ncerr.ErrNotEncrypted)
	}
	st := enc.state()
	return TLSInfo{
		Backend:            enc.backend(),
		Version:            tls.VersionName(st.version),
		CipherSuite:        tls.CipherSuiteName(st.cipherSuite),
		ServerName:         st.serverName,
		NegotiatedProtocol: st.negotiatedProtocol,
	}, nil
}

// Read reads from whichever variant is active.  Errors are returned
// unchanged.
func (s *Stream) Read(p []byte) (int, error) {
	in := s.current()
	if s.readTimeout > 0 {
		if err := in.socket().SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return 0, err
		}
	}

	var (
		n   int
		err error
	)
	switch v := in.(type) {
	case *plainInner:
		n, err = v.conn.Read(p)
	case encrypted:
		n, err = v.Read(p)
	default:
		panic(fmt.Sprintf("netstream: unknown variant %T", in))
	}
	s.metrics.BytesReceived(int64(n))
	return n, err
}

// Write writes to whichever variant is active.  Errors are returned
// unchanged.
func (s *Stream) Write(p []byte) (int, error) {
	in := s.current()
	if s.writeTimeout > 0 {
		if err := in.socket().SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return 0, err
		}
	}

	var (
		n   int
		err error
	)
	switch v := in.(type) {
	case *plainInner:
		n, err = v.conn.Write(p)
	case encrypted:
		n, err = v.Write(p)
	default:
		panic(fmt.Sprintf("netstream: unknown variant %T", in))
	}
	s.metrics.BytesSent(int64(n))
	return n, err
}

// Flush is a no-op: neither sockets nor the TLS backends buffer writes.
func (s *Stream) Flush() error {
	s.current()
	return nil
}

// CloseWrite ends the sending direction: an encrypted stream first sends
// close_notify, then the socket's write half is shut down.
func (s *Stream) CloseWrite() error {
	in := s.current()
	if enc, ok := in.(encrypted); ok {
		if err := enc.closeWrite(); err != nil {
			return err
		}
	}
	return shutdownConn(in.socket(), ShutdownWrite)
}

// Close releases the socket.  It is safe to call while another goroutine
// is blocked in Read, which then returns an error.
func (s *Stream) Close() error {
	var err error
	switch v := s.current().(type) {
	case *plainInner:
		err = v.conn.Close()
	case encrypted:
		err = v.close()
	}
	if s.closed.CompareAndSwap(false, true) {
		s.metrics.ConnectionClosed()
	}
	return err
}

// Upgrade performs the TLS handshake described by p over the stream's
// socket and switches the stream to the encrypted variant.  Upgrading an
// already encrypted stream does nothing.
//
// If the domain is invalid the stream is untouched.  If the handshake
// fails the stream is left holding its original plain connection.
func (s *Stream) Upgrade(ctx context.Context, p *TLSParameters) error {
	plain, ok := s.current().(*plainInner)
	if !ok {
		return nil
	}
	if !anyBackendEnabled() {
		panic("netstream: TLS upgrade requested but no TLS backend was compiled in")
	}
	if p == nil || p.connector == nil {
		return ncerr.Client("upgrade", ncerr.ErrNoConnector)
	}

	name, err := serverName(p.domain)
	if err != nil {
		return ncerr.Connection("handshake", p.domain, err)
	}

	s.inner = nil
	defer func() {
		if s.inner == nil {
			s.inner = plain
		}
	}()

	s.logger.Debug("starting %s TLS handshake with %s (%s)",
		p.connector.Backend(), name, plain.conn.RemoteAddr())

	enc, err := p.connector.handshake(ctx, plain.conn, name)
	if err != nil {
		s.metrics.RecordError(err.Error())
		return ncerr.Connection("handshake", p.domain, err)
	}

	s.inner = enc
	s.metrics.TLSUpgrade()
	s.logger.Verbose("TLS established with %s using %s", name, enc.backend())
	return nil
}
