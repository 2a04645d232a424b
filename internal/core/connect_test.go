package core

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailnet/config"
	"mailnet/internal/capability"
	ncerr "mailnet/internal/errors"
	"mailnet/netstream"
	"mailnet/util"
)

// ── helpers ──────────────────────────────────────────────────────────

type testCert struct {
	tls tls.Certificate
	pem []byte
}

// newTestCert returns a self-signed certificate for localhost.
func newTestCert(t *testing.T) testCert {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(25),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return testCert{
		tls: tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key},
		pem: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

func writeCAFile(t *testing.T, cert testCert) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, cert.pem, 0o600))
	return path
}

// serveOne accepts a single connection on loopback and hands it to
// handler.  It returns the listener's port.
func serveOne(t *testing.T, handler func(net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

// smtpServer plays a minimal ESMTP server.  With offerTLS it advertises
// STARTTLS, upgrades with cert and greets again over the encrypted
// channel.
func smtpServer(cert testCert, offerTLS bool) func(net.Conn) {
	return func(c net.Conn) {
		tp := textproto.NewConn(c)
		tp.PrintfLine("220 mx.test ESMTP")
		if _, err := tp.ReadLine(); err != nil { // EHLO
			return
		}
		if offerTLS {
			tp.PrintfLine("250-mx.test\r\n250-PIPELINING\r\n250 STARTTLS")
		} else {
			tp.PrintfLine("250-mx.test\r\n250 8BITMIME")
			return
		}
		if line, err := tp.ReadLine(); err != nil || line != "STARTTLS" {
			return
		}
		tp.PrintfLine("220 go ahead")

		tc := tls.Server(c, &tls.Config{Certificates: []tls.Certificate{cert.tls}})
		if tc.Handshake() != nil {
			return
		}
		tc.Write([]byte("250 secured\r\n"))
		tc.Close()
	}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func loopbackConfig(port int) *config.Config {
	cfg := config.Default()
	cfg.Host, cfg.Port = "127.0.0.1", port
	cfg.Timeout = 5 * time.Second
	return cfg
}

// buildConnect builds from cfg and wires deterministic I/O.
func buildConnect(t *testing.T, cfg *config.Config, stdin io.Reader) (*ConnectMode, *bytes.Buffer) {
	t.Helper()
	mode, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	cm := mode.(*ConnectMode)
	out := &bytes.Buffer{}
	cm.Stdin, cm.Stdout = stdin, out
	return cm, out
}

// ── tests ────────────────────────────────────────────────────────────

func TestConnect_PlainGreeting(t *testing.T) {
	port := serveOne(t, func(c net.Conn) {
		c.Write([]byte("220 mx.test ESMTP\r\n"))
	})

	pr, pw := io.Pipe()
	defer pw.Close()
	cm, out := buildConnect(t, loopbackConfig(port), pr)

	require.NoError(t, cm.Run(testCtx(t)))
	assert.Equal(t, "220 mx.test ESMTP\r\n", out.String())
}

func TestConnect_PlainSend(t *testing.T) {
	got := make(chan string, 1)
	port := serveOne(t, func(c net.Conn) {
		b, _ := io.ReadAll(c)
		got <- string(b)
	})

	cfg := loopbackConfig(port)
	cfg.CRLF = true
	cm, _ := buildConnect(t, cfg, bytes.NewBufferString("EHLO client\nQUIT\n"))

	require.NoError(t, cm.Run(testCtx(t)))
	select {
	case s := <-got:
		assert.Equal(t, "EHLO client\r\nQUIT\r\n", s)
	case <-time.After(5 * time.Second):
		t.Fatal("server saw no data")
	}
}

func TestConnect_ManualConstruction(t *testing.T) {
	port := serveOne(t, func(c net.Conn) {
		c.Write([]byte("* OK IMAP4rev1 ready\r\n"))
	})

	out := &bytes.Buffer{}
	cm := &ConnectMode{
		Server:     net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Connect:    netstream.ConnectOptions{Timeout: time.Second},
		TLSMode:    config.TLSNone,
		Capability: &capability.Relay{},
		Logger:     util.NopLogger(),
		Stdin:      bytes.NewReader(nil),
		Stdout:     out,
	}
	require.NoError(t, cm.Run(testCtx(t)))
	assert.Equal(t, "* OK IMAP4rev1 ready\r\n", out.String())
}

func TestConnect_Refused(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)

	cm, _ := buildConnect(t, loopbackConfig(port), bytes.NewReader(nil))
	err = cm.Run(testCtx(t))
	require.Error(t, err)
	assert.True(t, ncerr.IsConnection(err), "got %v", err)
}

func TestConnect_ImplicitTLS(t *testing.T) {
	cert := newTestCert(t)
	port := serveOne(t, func(c net.Conn) {
		tc := tls.Server(c, &tls.Config{Certificates: []tls.Certificate{cert.tls}})
		if tc.Handshake() != nil {
			return
		}
		tc.Write([]byte("* OK secure IMAP\r\n"))
		io.Copy(io.Discard, tc)
	})

	cfg := loopbackConfig(port)
	cfg.TLSMode, cfg.CAFile = config.TLSImplicit, writeCAFile(t, cert)
	cm, out := buildConnect(t, cfg, bytes.NewBufferString("a1 LOGOUT\r\n"))

	require.NoError(t, cm.Run(testCtx(t)))
	assert.Equal(t, "* OK secure IMAP\r\n", out.String())
}

func TestConnect_ImplicitTLS_Untrusted(t *testing.T) {
	cert := newTestCert(t)
	port := serveOne(t, func(c net.Conn) {
		tls.Server(c, &tls.Config{Certificates: []tls.Certificate{cert.tls}}).Handshake()
	})

	cfg := loopbackConfig(port)
	cfg.TLSMode = config.TLSImplicit
	cm, out := buildConnect(t, cfg, bytes.NewReader(nil))

	err := cm.Run(testCtx(t))
	require.Error(t, err)
	assert.True(t, ncerr.IsConnection(err), "got %v", err)
	var verr *tls.CertificateVerificationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, out.String())
}

func TestConnect_HandshakeTimeout(t *testing.T) {
	port := serveOne(t, func(c net.Conn) {
		io.Copy(io.Discard, c) // swallow the ClientHello, never answer
	})

	cfg := loopbackConfig(port)
	cfg.TLSMode, cfg.Insecure = config.TLSImplicit, true
	cfg.HandshakeTimeout = 200 * time.Millisecond
	cm, _ := buildConnect(t, cfg, bytes.NewReader(nil))

	start := time.Now()
	err := cm.Run(testCtx(t))
	require.Error(t, err)
	assert.True(t, ncerr.IsConnection(err), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConnect_StartTLS(t *testing.T) {
	cert := newTestCert(t)
	port := serveOne(t, smtpServer(cert, true))

	cfg := loopbackConfig(port)
	cfg.TLSMode, cfg.CAFile = config.TLSStartTLS, writeCAFile(t, cert)
	cfg.ServerName = "localhost"
	cm, out := buildConnect(t, cfg, bytes.NewReader(nil))

	require.NoError(t, cm.Run(testCtx(t)))
	// The plaintext exchange is consumed by the negotiation.
	assert.Equal(t, "250 secured\r\n", out.String())
}

func TestConnect_StartTLS_NotOffered(t *testing.T) {
	cert := newTestCert(t)
	port := serveOne(t, smtpServer(cert, false))

	cfg := loopbackConfig(port)
	cfg.TLSMode, cfg.Insecure = config.TLSStartTLS, true
	cm, _ := buildConnect(t, cfg, bytes.NewReader(nil))

	err := cm.Run(testCtx(t))
	require.Error(t, err)
	assert.True(t, ncerr.IsConnection(err), "got %v", err)
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestConnect_ShowCert(t *testing.T) {
	cert := newTestCert(t)
	port := serveOne(t, smtpServer(cert, true))

	cfg := loopbackConfig(port)
	cfg.TLSMode, cfg.CAFile = config.TLSStartTLS, writeCAFile(t, cert)
	cfg.ShowCert = true
	cm, out := buildConnect(t, cfg, bytes.NewReader(nil))

	require.NoError(t, cm.Run(testCtx(t)))

	assert.Contains(t, out.String(), "backend:  std\n")
	rest := out.Bytes()[bytes.Index(out.Bytes(), []byte("-----BEGIN")):]
	block, _ := pem.Decode(rest)
	require.NotNil(t, block)
	assert.Equal(t, cert.tls.Certificate[0], block.Bytes)
}
