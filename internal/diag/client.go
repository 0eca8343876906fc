package diag

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Client reads the status stream of a remote node.
type Client struct {
	conn *websocket.Conn
}

// StreamURL turns a diagnostics listen address into its websocket URL.
func StreamURL(addr string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	return u.String()
}

// Dial connects to the /ws endpoint at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: writeWait}
	conn, _, err := dialer.DialContext(ctx, StreamURL(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	return &Client{conn: conn}, nil
}

// Next blocks for the next Status.
func (c *Client) Next() (Status, error) {
	var st Status
	if err := c.conn.ReadJSON(&st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Close ends the stream.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
