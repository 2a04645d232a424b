package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"mailnet/config"
	"mailnet/internal/capability"
	"mailnet/internal/session"
	"mailnet/internal/starttls"
	"mailnet/netstream"
	"mailnet/tunnel"
	"mailnet/util"
)

// ConnectMode dials a mail server, optionally encrypts the stream, and
// runs a capability on it.
type ConnectMode struct {
	Server  string // host:port
	Connect netstream.ConnectOptions

	TLSMode          config.TLSMode
	TLS              *netstream.TLSParameters
	EHLOName         string
	HandshakeTimeout time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Capability capability.Capability
	JumpHost   *tunnel.JumpHost // closed when Run returns
	Logger     *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run connects, secures the stream as configured, and hands a session
// to the capability.  The stream is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	if m.JumpHost != nil {
		defer m.JumpHost.Close()
	}

	m.Logger.Verbose("connecting to %s", m.Server)

	s, err := netstream.Connect(ctx, m.Server, m.Connect)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Server, err)
	}
	defer s.Close()

	if err := s.SetReadTimeout(m.ReadTimeout); err != nil {
		return err
	}
	if err := s.SetWriteTimeout(m.WriteTimeout); err != nil {
		return err
	}

	if err := m.secure(ctx, s); err != nil {
		return err
	}

	sess := session.New(s, m.stdin(), m.stdout(), m.Logger)
	return m.Capability.Handle(ctx, sess)
}

// secure runs the STARTTLS exchange when configured, then the TLS
// handshake, both within HandshakeTimeout.
func (m *ConnectMode) secure(ctx context.Context, s *netstream.Stream) error {
	if m.TLSMode != config.TLSImplicit && m.TLSMode != config.TLSStartTLS {
		return nil
	}

	if m.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.HandshakeTimeout)
		defer cancel()
	}

	if m.TLSMode == config.TLSStartTLS {
		// The SMTP exchange is bounded by the read timeout; tighten it
		// to the handshake budget while it runs.
		if m.HandshakeTimeout > 0 && (m.ReadTimeout == 0 || m.ReadTimeout > m.HandshakeTimeout) {
			if err := s.SetReadTimeout(m.HandshakeTimeout); err != nil {
				return err
			}
			defer s.SetReadTimeout(m.ReadTimeout) //nolint:errcheck
		}
		m.Logger.Verbose("negotiating STARTTLS as %s", m.EHLOName)
		if err := starttls.Negotiate(s, m.EHLOName); err != nil {
			return err
		}
	}

	if err := s.Upgrade(ctx, m.TLS); err != nil {
		return err
	}
	if info, err := s.TLSInfo(); err == nil {
		m.Logger.Info("%s established (%s, %s)", info.Version, info.CipherSuite, info.Backend)
	}
	return nil
}
