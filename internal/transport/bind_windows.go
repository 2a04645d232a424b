//go:build windows

package transport

// Winsock rejects connect on a socket that was never bound.
const bindBeforeConnect = true
