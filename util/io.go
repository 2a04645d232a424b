package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// Duplex is a bidirectional stream that can half-close its write side.
// *net.TCPConn and *netstream.Stream both satisfy it.
type Duplex interface {
	io.ReadWriteCloser
	CloseWrite() error
}

// BidirectionalCopy shuffles data between a network stream and an
// arbitrary reader/writer pair (typically stdin/stdout) until the remote
// side finishes sending, a copy fails, or the context is cancelled.
//
// The reader side is not waited for: a blocked read on stdin cannot be
// interrupted and must not keep the session alive after the server has
// gone away.
func BidirectionalCopy(ctx context.Context, conn Duplex, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan error, 1)
	outbound := make(chan error, 1)

	// network → writer
	go func() {
		_, err := copyBuffer(w, conn)
		inbound <- err
		cancel()
	}()

	// reader → network
	go func() {
		_, err := copyBuffer(conn, r)
		// Half-close so the server sees end of input but can still
		// finish its reply.
		conn.CloseWrite() //nolint:errcheck
		outbound <- err
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	conn.Close() // unblock the pending network read
	if err := <-inbound; !isHarmless(err) {
		return err
	}
	select {
	case err := <-outbound:
		if !isHarmless(err) {
			return err
		}
	default:
	}
	return nil
}

func copyBuffer(dst io.Writer, src io.Reader) (int64, error) {
	buf := GetBuf()
	defer PutBuf(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// CRLFReader returns a reader that rewrites bare "\n" line endings to
// "\r\n", as mail protocols require.  Existing "\r\n" pairs pass through
// unchanged.
func CRLFReader(r io.Reader) io.Reader {
	return &crlfReader{r: r, scratch: make([]byte, 4096)}
}

type crlfReader struct {
	r       io.Reader
	scratch []byte
	backing []byte
	pending []byte
	prev    byte
	err     error
}

func (c *crlfReader) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		n, err := c.r.Read(c.scratch)
		c.err = err
		out := c.backing[:0]
		for _, b := range c.scratch[:n] {
			if b == '\n' && c.prev != '\r' {
				out = append(out, '\r')
			}
			out = append(out, b)
			c.prev = b
		}
		c.backing = out
		c.pending = out
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}
