package sd

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/muurk/meshsd/internal/logging"
	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/transport"
)

// DefaultRoundTimeout bounds one discovery round.
const DefaultRoundTimeout = 4 * time.Second

// FoundFunc receives one matching service from one responder.
type FoundFunc func(from netip.Addr, name, typ string)

// Client runs discovery rounds.
type Client struct {
	dialer  transport.Dialer
	ids     *protocol.IDSource
	timeout time.Duration
}

// NewClient creates a Client. A nil ids allocates a new IDSource.
func NewClient(dialer transport.Dialer, ids *protocol.IDSource) *Client {
	if ids == nil {
		ids = protocol.NewIDSource()
	}
	return &Client{dialer: dialer, ids: ids, timeout: DefaultRoundTimeout}
}

// SetRoundTimeout overrides the round length. Non-positive values restore
// DefaultRoundTimeout.
func (c *Client) SetRoundTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultRoundTimeout
	}
	c.timeout = d
}

// RoundTimeout returns the round length.
func (c *Client) RoundTimeout() time.Duration {
	return c.timeout
}

// Discover sends one query for the optional (name, typ) filter to the group
// selected by mesh and calls onFound for every matching entry of every
// valid reply received before the round deadline. Reaching the deadline is
// the normal end of a round and returns nil.
func (c *Client) Discover(ctx context.Context, name, typ string, mesh bool, onFound FoundFunc) error {
	query, err := protocol.BuildQuery(c.ids, protocol.Query{Name: name, Type: typ})
	if err != nil {
		return err
	}

	conn, err := c.dialer.Open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set round deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	dst := protocol.Destination(mesh)
	if _, err := conn.WriteTo(query, dst); err != nil {
		return fmt.Errorf("failed to send query to %s: %w", dst, err)
	}
	logging.LogDatagram("sent", dst.String(), query)

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if transport.IsTimeout(err) {
				return ctx.Err()
			}
			return fmt.Errorf("discovery receive failed: %w", err)
		}

		data := buf[:n]
		peer := from.String()
		logging.LogDatagram("received", peer, data)

		services, skipped, err := protocol.ParseListing(data)
		if err != nil {
			logging.LogDropped(peer, err, data)
			continue
		}
		if skipped > 0 {
			logging.LogRawBytes("Reply with malformed entries from "+peer, data)
		}

		sender, ok := protocol.SenderAddr(from)
		if !ok {
			continue
		}
		for _, svc := range services {
			if name != "" && svc.Name != name {
				continue
			}
			if typ != "" && svc.Type != typ {
				continue
			}
			onFound(sender, svc.Name, svc.Type)
		}
	}
}
