// Package core is the orchestration layer.  It composes the stream,
// the encryption step and a capability into a complete run and provides
// a builder that assembles it from a Config.
//
// Architecture layers (bottom → top):
//
//	resolve/transport  →  netstream  →  session/capability  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of mailnet.  Each mode
// owns its full lifecycle from connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
