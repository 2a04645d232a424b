// Package starttls performs the SMTP exchange that precedes an in-band
// TLS upgrade: greeting, EHLO, STARTTLS.  It stops as soon as the
// server agrees to start TLS; the handshake itself and everything after
// it belong to the caller.
package starttls

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strings"

	ncerr "mailnet/internal/errors"
)

// DefaultHeloName is sent when the caller gives no EHLO name.
const DefaultHeloName = "localhost"

// Negotiate reads the 220 greeting, announces heloName with EHLO,
// checks that STARTTLS is offered and sends it.  On success the server
// is waiting for a ClientHello on rw.
//
// The server must not send anything after its 220 reply to STARTTLS;
// bytes read ahead of the handshake would be lost.
func Negotiate(rw io.ReadWriter, heloName string) error {
	if heloName == "" {
		heloName = DefaultHeloName
	}
	if strings.ContainsAny(heloName, "\r\n ") {
		return ncerr.Client("starttls", fmt.Errorf("invalid EHLO name %q", heloName))
	}

	r := textproto.NewReader(bufio.NewReader(rw))
	w := textproto.NewWriter(bufio.NewWriter(rw))

	if _, _, err := r.ReadResponse(220); err != nil {
		return fail("greeting", err)
	}

	if err := w.PrintfLine("EHLO %s", heloName); err != nil {
		return fail("ehlo", err)
	}
	_, msg, err := r.ReadResponse(250)
	if err != nil {
		return fail("ehlo", err)
	}
	if !Extensions(msg)["STARTTLS"] {
		return fail("ehlo", fmt.Errorf("server does not offer STARTTLS"))
	}

	if err := w.PrintfLine("STARTTLS"); err != nil {
		return fail("starttls", err)
	}
	if _, _, err := r.ReadResponse(220); err != nil {
		return fail("starttls", err)
	}
	return nil
}

// Extensions parses the message of a multi-line EHLO reply into the set
// of advertised keywords.  The first line is the server's greeting and
// is skipped.
func Extensions(msg string) map[string]bool {
	lines := strings.Split(msg, "\n")
	ext := make(map[string]bool, len(lines))
	for _, line := range lines[1:] {
		if f := strings.Fields(line); len(f) > 0 {
			ext[strings.ToUpper(f[0])] = true
		}
	}
	return ext
}

func fail(step string, err error) error {
	return ncerr.Connection("starttls", step, err)
}
