// Package capability defines what happens over an established mail
// connection.  Each Capability encapsulates a single behaviour (relay
// I/O, run a program, show the certificate) and operates on a Session
// rather than a raw stream.
package capability

import (
	"context"

	"mailnet/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.
type Capability interface {
	// Handle runs the capability against the given session.
	// It blocks until the connection is done or the context is
	// cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}
