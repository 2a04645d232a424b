package capability

import (
	"context"
	"encoding/pem"
	"fmt"

	"mailnet/internal/session"
)

// ShowCert prints the negotiated TLS parameters and the server's leaf
// certificate in PEM form, then returns without relaying anything.
type ShowCert struct{}

func (ShowCert) Handle(_ context.Context, sess *session.Session) error {
	info, err := sess.Stream.TLSInfo()
	if err != nil {
		return err
	}
	der, err := sess.Stream.PeerCertificate()
	if err != nil {
		return err
	}

	fmt.Fprintf(sess.Stdout, "peer:     %s\n", sess.Stream.PeerAddr())
	fmt.Fprintf(sess.Stdout, "backend:  %s\n", info.Backend)
	fmt.Fprintf(sess.Stdout, "version:  %s\n", info.Version)
	fmt.Fprintf(sess.Stdout, "cipher:   %s\n", info.CipherSuite)
	if info.ServerName != "" {
		fmt.Fprintf(sess.Stdout, "sni:      %s\n", info.ServerName)
	}
	if info.NegotiatedProtocol != "" {
		fmt.Fprintf(sess.Stdout, "alpn:     %s\n", info.NegotiatedProtocol)
	}
	return pem.Encode(sess.Stdout, &pem.Block{Type: "CERTIFICATE", Bytes: der})
}
