//go:build !windows

package transport

const bindBeforeConnect = false
