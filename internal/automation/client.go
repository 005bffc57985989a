package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/events"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReconnectMin     = 1 * time.Second
	defaultReconnectMax     = 60 * time.Second

	pingInterval   = 30 * time.Second
	requestTimeout = 10 * time.Second
)

// wireMessage is the envelope for every frame on the bus websocket.
type wireMessage struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	Event   *wireEvent      `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireEvent struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// busSubscription tracks one event subscription across reconnects.
type busSubscription struct {
	eventType string
	cb        func(Event)

	// serverID is the message id the current connection knows the
	// subscription by. It changes on every resubscribe.
	serverID int64
}

// Client is the websocket implementation of Bus. It authenticates with a
// bearer token, keeps the connection alive with pings, and reconnects with
// bounded exponential backoff, re-establishing subscriptions on the new
// connection.
type Client struct {
	url              string
	token            string
	handshakeTimeout time.Duration
	reconnectMin     time.Duration
	reconnectMax     time.Duration

	bus *events.EventBus
	log *slog.Logger

	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  int64
	pending map[int64]chan wireMessage
	subs    map[int64]*busSubscription
	subSeq  int64
	closed  bool

	runCtx    context.Context
	runCancel context.CancelFunc
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = logger
	}
}

// WithClientEventBus publishes connection lifecycle events.
func WithClientEventBus(bus *events.EventBus) ClientOption {
	return func(c *Client) {
		c.bus = bus
	}
}

// WithClientToken sets the access token directly, bypassing the environment
// lookup. Used by tests.
func WithClientToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a bus client from configuration. The access token is read
// from the environment variable named in the config.
func NewClient(cfg config.AutomationConfig, opts ...ClientOption) *Client {
	c := &Client{
		url:              cfg.URL,
		handshakeTimeout: defaultHandshakeTimeout,
		reconnectMin:     defaultReconnectMin,
		reconnectMax:     defaultReconnectMax,
		log:              slog.Default(),
		pending:          make(map[int64]chan wireMessage),
		subs:             make(map[int64]*busSubscription),
	}
	if cfg.TokenEnv != "" {
		c.token = os.Getenv(cfg.TokenEnv)
	}
	if cfg.HandshakeTimeoutSeconds > 0 {
		c.handshakeTimeout = time.Duration(cfg.HandshakeTimeoutSeconds) * time.Second
	}
	if cfg.ReconnectMinSeconds > 0 {
		c.reconnectMin = time.Duration(cfg.ReconnectMinSeconds) * time.Second
	}
	if cfg.ReconnectMaxSeconds > 0 {
		c.reconnectMax = time.Duration(cfg.ReconnectMaxSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dialer = &websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	return c
}

// Connect dials the bus, completes the auth handshake, and starts the read
// and keepalive loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if c.closed {
		return fmt.Errorf("bus client is closed")
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.conn = conn
	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	go c.readLoop(c.runCtx, conn)
	go c.keepalive(c.runCtx, conn)

	c.log.Info("connected to automation bus", "url", c.url)
	return nil
}

// Disconnect closes the connection and stops the reconnect loop.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	if c.runCancel != nil {
		c.runCancel()
	}
	c.failPendingLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	return nil
}

// SubscribeToEvents registers a callback for a bus event type. The
// subscription survives reconnects.
func (c *Client) SubscribeToEvents(eventType string, cb func(Event)) (func(), error) {
	serverID, err := c.subscribeOnWire(context.Background(), eventType)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.subSeq++
	localID := c.subSeq
	c.subs[localID] = &busSubscription{eventType: eventType, cb: cb, serverID: serverID}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		sub, ok := c.subs[localID]
		delete(c.subs, localID)
		c.mu.Unlock()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := c.request(ctx, map[string]any{
			"type":         "unsubscribe_events",
			"subscription": sub.serverID,
		})
		if err != nil {
			c.log.Debug("unsubscribe failed", "event_type", sub.eventType, "error", err)
		}
	}, nil
}

// GetState fetches the current state of one entity.
func (c *Client) GetState(ctx context.Context, entityID string) (*EntityState, error) {
	resp, err := c.request(ctx, map[string]any{"type": "get_states"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entity states; %w", err)
	}

	var states []struct {
		EntityID   string         `json:"entity_id"`
		State      string         `json:"state"`
		Attributes map[string]any `json:"attributes"`
	}
	if err := json.Unmarshal(resp.Result, &states); err != nil {
		return nil, fmt.Errorf("failed to parse entity states; %w", err)
	}

	for _, s := range states {
		if s.EntityID == entityID {
			return &EntityState{
				EntityID:   s.EntityID,
				State:      s.State,
				Attributes: s.Attributes,
			}, nil
		}
	}
	return nil, fmt.Errorf("entity %q not found", entityID)
}

// CallService invokes a service on the bus.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	msg := map[string]any{
		"type":    "call_service",
		"domain":  domain,
		"service": service,
	}
	if len(data) > 0 {
		msg["service_data"] = data
	}
	if _, err := c.request(ctx, msg); err != nil {
		return fmt.Errorf("service call %s.%s failed; %w", domain, service, err)
	}
	return nil
}

// dial connects and runs the auth exchange. The caller holds no locks that
// the read loop needs.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial automation bus; %w", err)
	}

	deadline := time.Now().Add(c.handshakeTimeout)
	conn.SetReadDeadline(deadline)

	var hello wireMessage
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read bus greeting; %w", err)
	}
	if hello.Type != "auth_required" {
		conn.Close()
		return nil, fmt.Errorf("unexpected bus greeting %q", hello.Type)
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(map[string]any{"type": "auth", "access_token": c.token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send auth; %w", err)
	}

	var authResp wireMessage
	if err := conn.ReadJSON(&authResp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read auth response; %w", err)
	}
	switch authResp.Type {
	case "auth_ok":
	case "auth_invalid":
		conn.Close()
		return nil, fmt.Errorf("bus rejected access token: %s", authResp.Message)
	default:
		conn.Close()
		return nil, fmt.Errorf("unexpected auth response %q", authResp.Type)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	return conn, nil
}

// subscribeOnWire sends subscribe_events and returns the message id the
// server filed the subscription under.
func (c *Client) subscribeOnWire(ctx context.Context, eventType string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	id, ch, err := c.send(map[string]any{
		"type":       "subscribe_events",
		"event_type": eventType,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to subscribe to %q; %w", eventType, err)
	}
	if _, err := c.await(ctx, id, ch); err != nil {
		return 0, fmt.Errorf("failed to subscribe to %q; %w", eventType, err)
	}
	return id, nil
}

// request sends a command and waits for its result.
func (c *Client) request(ctx context.Context, msg map[string]any) (wireMessage, error) {
	id, ch, err := c.send(msg)
	if err != nil {
		return wireMessage{}, err
	}
	return c.await(ctx, id, ch)
}

// send assigns an id, registers a pending result channel, and writes the
// frame.
func (c *Client) send(msg map[string]any) (int64, chan wireMessage, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return 0, nil, fmt.Errorf("not connected")
	}
	c.nextID++
	id := c.nextID
	ch := make(chan wireMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	msg["id"] = id

	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return 0, nil, fmt.Errorf("bus write failed; %w", err)
	}
	return id, ch, nil
}

func (c *Client) await(ctx context.Context, id int64, ch chan wireMessage) (wireMessage, error) {
	select {
	case resp, ok := <-ch:
		if !ok {
			return wireMessage{}, fmt.Errorf("connection lost")
		}
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return resp, fmt.Errorf("bus error %s: %s", resp.Error.Code, resp.Error.Message)
			}
			return resp, fmt.Errorf("bus command failed")
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return wireMessage{}, ctx.Err()
	}
}

// readLoop routes incoming frames until the connection dies, then hands off
// to the reconnect loop.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(ctx, conn, err)
			return
		}

		switch msg.Type {
		case "event":
			c.dispatchEvent(msg)
		case "result", "pong":
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		default:
			c.log.Debug("ignoring bus frame", "type", msg.Type)
		}
	}
}

func (c *Client) dispatchEvent(msg wireMessage) {
	if msg.Event == nil {
		return
	}
	c.mu.Lock()
	var cbs []func(Event)
	for _, sub := range c.subs {
		if sub.serverID == msg.ID {
			cbs = append(cbs, sub.cb)
		}
	}
	c.mu.Unlock()

	evt := Event{Type: msg.Event.EventType, Data: msg.Event.Data}
	for _, cb := range cbs {
		go cb(evt)
	}
}

// keepalive pings the server and forces a reconnect when a ping goes
// unanswered.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			_, err := c.request(pingCtx, map[string]any{"type": "ping"})
			cancel()
			if err != nil && ctx.Err() == nil {
				c.log.Warn("bus ping failed, forcing reconnect", "error", err)
				conn.Close()
				return
			}
		}
	}
}

// handleDisconnect tears down the dead connection and reconnects with
// bounded exponential backoff, resubscribing on success.
func (c *Client) handleDisconnect(ctx context.Context, conn *websocket.Conn, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.failPendingLocked()
	c.mu.Unlock()

	c.log.Warn("automation bus disconnected", "error", cause)
	c.publish(events.BusDisconnected)

	backoff := c.reconnectMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		dialCtx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
		newConn, err := c.dial(dialCtx)
		cancel()
		if err != nil {
			c.log.Warn("bus reconnect failed", "backoff", backoff, "error", err)
			backoff *= 2
			if backoff > c.reconnectMax {
				backoff = c.reconnectMax
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			newConn.Close()
			return
		}
		c.conn = newConn
		c.mu.Unlock()

		go c.readLoop(ctx, newConn)
		go c.keepalive(ctx, newConn)
		c.resubscribe(ctx)

		c.log.Info("automation bus reconnected")
		c.publish(events.BusReconnected)
		return
	}
}

// resubscribe re-establishes every live subscription on the new connection.
func (c *Client) resubscribe(ctx context.Context) {
	c.mu.Lock()
	ids := make([]int64, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.mu.Lock()
		sub, ok := c.subs[id]
		c.mu.Unlock()
		if !ok {
			continue
		}

		serverID, err := c.subscribeOnWire(ctx, sub.eventType)
		if err != nil {
			c.log.Error("failed to resubscribe after reconnect",
				"event_type", sub.eventType, "error", err)
			continue
		}
		c.mu.Lock()
		if cur, ok := c.subs[id]; ok {
			cur.serverID = serverID
		}
		c.mu.Unlock()
	}
}

// failPendingLocked closes every in-flight request channel. Caller holds mu.
func (c *Client) failPendingLocked() {
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

func (c *Client) publish(eventType events.EventType) {
	if c.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.bus.Publish(ctx, events.NewEvent(eventType, nil)); err != nil {
		c.log.Debug("bus lifecycle event not published", "error", err)
	}
}
