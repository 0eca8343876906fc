package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv6"

	"github.com/muurk/meshsd/internal/protocol"
)

// DefaultHopLimit is the multicast hop limit for discovery queries. Realm
// scope traffic has to cross several mesh hops.
const DefaultHopLimit = 64

// PacketConn is a datagram endpoint with a settable receive deadline.
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens the endpoint a discovery round sends from and receives on.
type Dialer interface {
	Open(ctx context.Context) (PacketConn, error)
}

// IsTimeout reports whether err is a receive deadline expiry.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsClosed reports whether err means the endpoint was closed.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func lookupInterface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find interface %q: %w", name, err)
	}
	return ifi, nil
}

// UDPDialer opens ephemeral IPv6 UDP endpoints for discovery rounds.
type UDPDialer struct {
	// Interface is the outgoing multicast interface (empty = system default)
	Interface string

	// HopLimit is the multicast hop limit (0 = DefaultHopLimit)
	HopLimit int
}

// Open implements Dialer.
func (d *UDPDialer) Open(ctx context.Context) (PacketConn, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp6", "[::]:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery endpoint: %w", err)
	}

	ifi, err := lookupInterface(d.Interface)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	hops := d.HopLimit
	if hops <= 0 {
		hops = DefaultHopLimit
	}

	p := ipv6.NewPacketConn(conn)
	err = multierr.Append(err, p.SetMulticastHopLimit(hops))
	if ifi != nil {
		err = multierr.Append(err, p.SetMulticastInterface(ifi))
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to configure multicast: %w", err)
	}
	return conn, nil
}

// Listener is the responder's endpoint: bound to the discovery port and
// joined to both discovery groups.
type Listener struct {
	net.PacketConn

	pc     *ipv6.PacketConn
	ifi    *net.Interface
	groups []*net.UDPAddr
}

// Listen binds addr (e.g. "[::]:5683") and joins every discovery group on
// the named interface.
func Listen(ctx context.Context, addr, ifname string) (*Listener, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp6", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ifi, err := lookupInterface(ifname)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	l := &Listener{PacketConn: conn, pc: ipv6.NewPacketConn(conn), ifi: ifi}
	for _, g := range protocol.Groups() {
		group := &net.UDPAddr{IP: g.AsSlice()}
		if err := l.pc.JoinGroup(ifi, group); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("failed to join %s: %w", g, err)
		}
		l.groups = append(l.groups, group)
	}
	return l, nil
}

// Close leaves the joined groups and closes the socket.
func (l *Listener) Close() error {
	var err error
	for _, g := range l.groups {
		err = multierr.Append(err, l.pc.LeaveGroup(l.ifi, g))
	}
	l.groups = nil
	return multierr.Append(err, l.PacketConn.Close())
}
