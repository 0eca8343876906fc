package protocol

import (
	"net"
	"net/netip"
)

// Port is the standard CoAP port the sd resource is served on.
const Port = 5683

// Multicast destinations for discovery queries. These literals are shared
// with already deployed peers and must stay bit-exact.
var (
	// siteLocalAllNodes is ff05::1.
	siteLocalAllNodes = [16]byte{0xff, 0x05, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}

	// realmLocalAllNodes is ff03::1, the all-nodes group of the mesh itself.
	realmLocalAllNodes = [16]byte{0xff, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}
)

// Group returns the multicast group selected by the mesh scope flag.
func Group(mesh bool) netip.Addr {
	if mesh {
		return netip.AddrFrom16(realmLocalAllNodes)
	}
	return netip.AddrFrom16(siteLocalAllNodes)
}

// Groups returns every group a responder must join.
func Groups() []netip.Addr {
	return []netip.Addr{Group(false), Group(true)}
}

// Destination returns the UDP destination for a discovery query.
func Destination(mesh bool) *net.UDPAddr {
	return net.UDPAddrFromAddrPort(netip.AddrPortFrom(Group(mesh), Port))
}

// Unspecified is the sentinel address meaning "not resolved".
func Unspecified() netip.Addr {
	return netip.IPv6Unspecified()
}

// SenderAddr extracts the IP of a datagram sender. IPv4-mapped addresses are
// unmapped so callers compare plain IPv4 or IPv6 values.
func SenderAddr(addr net.Addr) (netip.Addr, bool) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		ap := a.AddrPort()
		if !ap.Addr().IsValid() {
			return netip.Addr{}, false
		}
		return ap.Addr().Unmap(), true
	default:
		ap, err := netip.ParseAddrPort(addr.String())
		if err != nil {
			return netip.Addr{}, false
		}
		return ap.Addr().Unmap(), true
	}
}
