package capability

import (
	"context"

	"mailnet/internal/session"
	"mailnet/util"
)

// Relay copies data bidirectionally between the stream and the
// session's stdin/stdout, the default interactive / pipe mode.
type Relay struct {
	// CRLF rewrites bare LF on stdin to CRLF, as SMTP requires.  The
	// builder turns it on when stdin is a terminal.
	CRLF bool
}

// Handle shuttles bytes between the stream and the local I/O endpoints
// until one side closes or the context is cancelled.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	in := sess.Stdin
	if r.CRLF {
		in = util.CRLFReader(in)
	}
	return util.BidirectionalCopy(ctx, sess.Stream, in, sess.Stdout)
}
