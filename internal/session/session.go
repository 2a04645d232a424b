// Package session represents a single connection lifecycle, binding a
// mail-server stream with local I/O endpoints.
//
// Sessions decouple capabilities from concrete I/O sources: a
// capability doesn't need to know whether it's reading from os.Stdin
// or a test buffer, it just uses the session's Reader/Writer.
package session

import (
	"io"

	"mailnet/netstream"
	"mailnet/util"
)

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Stream *netstream.Stream
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger
}

// New creates a Session bound to the given stream and I/O pair.
func New(s *netstream.Stream, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	if logger == nil {
		logger = util.NopLogger()
	}
	return &Session{
		Stream: s,
		Stdin:  stdin,
		Stdout: stdout,
		Logger: logger,
	}
}
