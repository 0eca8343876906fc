// Package transporttest provides in-memory datagram endpoints for tests.
package transporttest

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/muurk/meshsd/internal/transport"
)

// Datagram is one packet with its peer address.
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// Conn is an in-memory transport.PacketConn. Reads pop queued datagrams;
// when the queue is empty a read reports a deadline expiry, or net.ErrClosed
// when CloseWhenDrained is set.
type Conn struct {
	mu       sync.Mutex
	inbox    []Datagram
	writes   []Datagram
	closed   bool
	deadline time.Time

	// OnWrite, when set, is called for every write and its result queued
	// for reading.
	OnWrite func(data []byte, to net.Addr) []Datagram

	// ReadErr, when set, is returned by reads once the queue is empty.
	ReadErr error

	// CloseWhenDrained makes an empty queue read like a closed socket.
	CloseWhenDrained bool
}

var _ transport.PacketConn = (*Conn)(nil)

// Push queues a datagram for reading.
func (c *Conn) Push(data []byte, from net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbox = append(c.inbox, Datagram{Data: data, Addr: from})
}

// ReadFrom implements transport.PacketConn.
func (c *Conn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, net.ErrClosed
	}
	if len(c.inbox) == 0 {
		switch {
		case c.ReadErr != nil:
			return 0, nil, c.ReadErr
		case c.CloseWhenDrained:
			return 0, nil, net.ErrClosed
		default:
			return 0, nil, os.ErrDeadlineExceeded
		}
	}
	d := c.inbox[0]
	c.inbox = c.inbox[1:]
	return copy(p, d.Data), d.Addr, nil
}

// WriteTo implements transport.PacketConn.
func (c *Conn) WriteTo(p []byte, addr net.Addr) (int, error) {
	data := append([]byte(nil), p...)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, net.ErrClosed
	}
	c.writes = append(c.writes, Datagram{Data: data, Addr: addr})
	onWrite := c.OnWrite
	c.mu.Unlock()

	if onWrite != nil {
		for _, d := range onWrite(data, addr) {
			c.Push(d.Data, d.Addr)
		}
	}
	return len(p), nil
}

// SetReadDeadline records the deadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

// Deadline returns the last read deadline set.
func (c *Conn) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// Close implements transport.PacketConn.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Writes returns a copy of every datagram written.
func (c *Conn) Writes() []Datagram {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Datagram(nil), c.writes...)
}

// Dialer is a transport.Dialer handing out fresh Conns wired to Handler.
type Dialer struct {
	mu     sync.Mutex
	opened []*Conn

	// Handler answers each write of a round.
	Handler func(data []byte, to net.Addr) []Datagram

	// OpenErr, when set, fails every Open.
	OpenErr error
}

// Open implements transport.Dialer.
func (d *Dialer) Open(ctx context.Context) (transport.PacketConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	c := &Conn{OnWrite: d.Handler}
	d.opened = append(d.opened, c)
	return c, nil
}

// SetHandler replaces the handler used by subsequently opened Conns.
func (d *Dialer) SetHandler(h func(data []byte, to net.Addr) []Datagram) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Handler = h
}

// Opened returns every Conn handed out so far.
func (d *Dialer) Opened() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.opened...)
}

// UDPAddr builds a peer address for tests.
func UDPAddr(ip string, port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
}
