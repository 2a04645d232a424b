package transport

import (
	"net"
	"net/netip"
)

// localBindAddr applies the local binding policy for one candidate:
//
//   - an explicit local address is bound with port 0;
//   - otherwise, where the platform rejects connect on an unbound socket,
//     the unspecified address of the candidate's family is bound;
//   - otherwise the socket is left unbound (nil).
func localBindAddr(candidate netip.AddrPort, local netip.Addr) *net.TCPAddr {
	if local.IsValid() {
		return &net.TCPAddr{IP: local.AsSlice(), Port: 0}
	}
	if !bindBeforeConnect {
		return nil
	}
	if candidate.Addr().Unmap().Is4() {
		return &net.TCPAddr{IP: net.IPv4zero, Port: 0}
	}
	return &net.TCPAddr{IP: net.IPv6unspecified, Port: 0}
}
