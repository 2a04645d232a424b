// Package errors provides the categorised error types used by mailnet.
//
// Every failure that leaves the transport core is classified before it is
// returned: callers above see a *Error of a known Kind (or a ConfigError /
// SSHError from the CLI side), never a bare OS error code.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNoAddress      = errors.New("could not resolve to any address")
	ErrNotEncrypted   = errors.New("connection is not encrypted")
	ErrNotConnected   = errors.New("not connected")
	ErrNoConnector    = errors.New("TLS parameters carry no connector")
	ErrBackendMissing = errors.New("TLS backend not compiled into this build")
	ErrAuthFailed     = errors.New("authentication failed")

	// ErrUnsupported is [errors.ErrUnsupported].
	ErrUnsupported = errors.ErrUnsupported
)

// ── Categories ───────────────────────────────────────────────────────

// Kind is the category of a transport failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConnection covers resolution, bind, connect, domain-name and
	// handshake failures.
	KindConnection
	// KindClient means the caller invoked an operation that is invalid
	// for the stream's current state.
	KindClient
	// KindTLS covers failures extracting data from an established
	// encrypted session.
	KindTLS
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindClient:
		return "client"
	case KindTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// Error is a categorised transport failure.
type Error struct {
	Kind Kind
	Op   string // "resolve", "bind", "dial", "handshake", "peer-certificate", ...
	Addr string // network address or domain involved (optional)
	Err  error  // underlying cause
}

func (e *Error) Error() string {
	s := e.Kind.String() + " error"
	if e.Op != "" {
		s += ": " + e.Op
	}
	if e.Addr != "" {
		s += " " + e.Addr
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "forward"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Connection creates a connection-category error.
func Connection(op, addr string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Addr: addr, Err: err}
}

// Client creates a usage error for an operation that is invalid in the
// current state.
func Client(op string, err error) *Error {
	return &Error{Kind: KindClient, Op: op, Err: err}
}

// TLS creates an encryption/certificate error.
func TLS(op string, err error) *Error {
	return &Error{Kind: KindTLS, Op: op, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// KindOf returns the category of the outermost *Error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConnection reports whether err is a connection error.
func IsConnection(err error) bool { return KindOf(err) == KindConnection }

// IsClient reports whether err is a usage error.
func IsClient(err error) bool { return KindOf(err) == KindClient }

// IsTLS reports whether err is an encryption/certificate error.
func IsTLS(err error) bool { return KindOf(err) == KindTLS }

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use mailnet/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
