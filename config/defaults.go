package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the SSH jump-host connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultHandshakeTimeout bounds the STARTTLS exchange plus the TLS
	// handshake.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultTLSBackend is the TLS implementation used unless another
	// is selected.
	DefaultTLSBackend = "std"

	// DefaultEHLOName is announced in EHLO before STARTTLS.
	DefaultEHLOName = "localhost"

	// EnvPrefix prefixes every supported environment variable.
	EnvPrefix = "MAILNET_"
)
