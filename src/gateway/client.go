package gateway

import (
	"sync"
	"time"

	"github.com/semsearch/gateway/src/types"
)

// Client wraps one WebSocket connection and manages message flow.
type Client struct {
	ID          string
	conn        types.Conn
	gw          *Gateway
	Send        chan types.ResponseFrame
	connectedAt time.Time
	userAgent   string
	mu          sync.Mutex
	done        chan struct{}
	closed      bool
}

// NewClient creates a new client wrapper around an accepted connection.
func NewClient(id string, conn types.Conn, gw *Gateway, userAgent string) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		gw:          gw,
		Send:        make(chan types.ResponseFrame, 256),
		connectedAt: time.Now(),
		userAgent:   userAgent,
		done:        make(chan struct{}),
	}
}

// UserAgent returns the client-supplied user agent, if any.
func (c *Client) UserAgent() string { return c.userAgent }

// ConnectedAt returns the time the connection was accepted.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// ReadPump reads raw frames from the connection and forwards them to the
// gateway for dispatch. It returns when the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.gw.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.gw.incoming <- inboundFrame{connectionID: c.ID, raw: raw}
	}
}

// WritePump writes queued frames to the connection. Call in a goroutine.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case frame, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.Send)
	}
}
