// Package gateway terminates client connections, assigns connection ids,
// routes inbound frames to handlers by their action selector, and exposes a
// directed push primitive keyed by connection id.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/semsearch/gateway/src/types"
)

// ErrGone reports that a push target is not connected. It is a defined
// failure mode for pushes, not a registry invariant violation.
var ErrGone = errors.New("connection gone")

// ErrBufferFull reports that a connected client's send buffer is saturated.
var ErrBufferFull = errors.New("send buffer full")

// FrameHandler processes one inbound frame from a connection. Handlers run
// concurrently; returning an error only logs it, the invocation is never
// retried.
type FrameHandler func(ctx context.Context, connectionID string, raw []byte) error

// ConnectFunc observes a new connection. A non-nil error refuses the
// connection and the transport is closed.
type ConnectFunc func(ctx context.Context, connectionID, userAgent string) error

// DisconnectFunc observes a closed connection.
type DisconnectFunc func(ctx context.Context, connectionID string)

// Gateway manages all client connections and frame dispatch.
type Gateway struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	incoming   chan inboundFrame

	handlers       map[string]FrameHandler
	defaultHandler FrameHandler
	onConnect      []ConnectFunc
	onDisconn      []DisconnectFunc

	mu     sync.RWMutex
	logger zerolog.Logger
	done   chan struct{}
}

type inboundFrame struct {
	connectionID string
	raw          []byte
}

// New creates a Gateway. Call Run in a goroutine before registering clients.
func New(logger zerolog.Logger) *Gateway {
	return &Gateway{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inboundFrame, 256),
		handlers:   make(map[string]FrameHandler),
		logger:     logger.With().Str("component", "gateway").Logger(),
		done:       make(chan struct{}),
	}
}

// RegisterHandler binds a frame handler to an action selector.
func (g *Gateway) RegisterHandler(action string, handler FrameHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[action] = handler
}

// SetDefaultHandler binds the handler for unrecognized or undecodable frames.
func (g *Gateway) SetDefaultHandler(handler FrameHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultHandler = handler
}

// OnConnect registers a connection callback. Any callback error refuses the
// connection.
func (g *Gateway) OnConnect(cb ConnectFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onConnect = append(g.onConnect, cb)
}

// OnDisconnect registers a disconnection callback.
func (g *Gateway) OnDisconnect(cb DisconnectFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onDisconn = append(g.onDisconn, cb)
}

// Run starts the gateway event loop. Call in a goroutine.
func (g *Gateway) Run() {
	for {
		select {
		case client := <-g.register:
			g.addClient(client)
		case client := <-g.unregister:
			g.removeClient(client)
		case in := <-g.incoming:
			g.dispatch(in)
		case <-g.done:
			return
		}
	}
}

// Stop halts the gateway event loop.
func (g *Gateway) Stop() {
	close(g.done)
}

// Register queues a client for registration.
func (g *Gateway) Register(c *Client) {
	g.register <- c
}

// Unregister queues a client for removal.
func (g *Gateway) Unregister(c *Client) {
	g.unregister <- c
}

// Push delivers a frame to a locally connected client. Returns ErrGone when
// the connection id is unknown here; callers holding a relay may forward the
// frame to other instances before treating the target as gone.
func (g *Gateway) Push(_ context.Context, connectionID string, frame types.ResponseFrame) error {
	g.mu.RLock()
	client, ok := g.clients[connectionID]
	g.mu.RUnlock()
	if !ok {
		return ErrGone
	}
	return client.enqueue(frame)
}

// Deliver hands a relayed frame to a local client if one exists. Frames for
// connections hosted elsewhere are silently dropped.
func (g *Gateway) Deliver(connectionID string, frame types.ResponseFrame) bool {
	g.mu.RLock()
	client, ok := g.clients[connectionID]
	g.mu.RUnlock()
	if !ok {
		return false
	}
	return client.enqueue(frame) == nil
}

// ConnectedClients returns the ids of all locally connected clients.
func (g *Gateway) ConnectedClients() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.clients))
	for id := range g.clients {
		ids = append(ids, id)
	}
	return ids
}

// ClientCount returns the number of locally connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

func (g *Gateway) addClient(c *Client) {
	g.mu.Lock()
	g.clients[c.ID] = c
	cbs := g.onConnect
	g.mu.Unlock()

	for _, cb := range cbs {
		if err := cb(context.Background(), c.ID, c.userAgent); err != nil {
			g.logger.Warn().Str("connection_id", c.ID).Err(err).Msg("connection refused")
			g.mu.Lock()
			delete(g.clients, c.ID)
			g.mu.Unlock()
			c.Close()
			return
		}
	}

	g.logger.Info().Str("connection_id", c.ID).Msg("connection opened")
}

func (g *Gateway) removeClient(c *Client) {
	g.mu.Lock()
	if _, ok := g.clients[c.ID]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c.ID)
	cbs := g.onDisconn
	g.mu.Unlock()

	c.Close()
	g.logger.Info().Str("connection_id", c.ID).Msg("connection closed")

	for _, cb := range cbs {
		cb(context.Background(), c.ID)
	}
}

// dispatch routes a frame to the handler bound to its action selector and
// runs it in its own goroutine. Frames from one connection may therefore be
// processed out of order; clients correlate responses by request_id.
func (g *Gateway) dispatch(in inboundFrame) {
	var sel struct {
		Action string `json:"action"`
	}
	decodeErr := json.Unmarshal(in.raw, &sel)

	g.mu.RLock()
	handler, ok := g.handlers[sel.Action]
	if decodeErr != nil || !ok {
		handler = g.defaultHandler
	}
	g.mu.RUnlock()

	if handler == nil {
		g.logger.Debug().Str("action", sel.Action).Msg("no handler")
		return
	}

	go func() {
		if err := handler(context.Background(), in.connectionID, in.raw); err != nil {
			g.logger.Error().Err(err).Str("action", sel.Action).Msg("handler error")
		}
	}()
}

// enqueue places a frame on the client's send buffer without blocking.
func (c *Client) enqueue(frame types.ResponseFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrGone
	}
	select {
	case c.Send <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}
