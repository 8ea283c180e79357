// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vigil-home/vigil/lib/clock"
)

// Status is the connection state of the push channel. The Channel is
// the only writer; every other component just reads it.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Defaults for Config fields left zero.
const (
	DefaultBaseDelay         = time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultMaxAttempts       = 10
	DefaultHeartbeatInterval = 30 * time.Second
)

// Config configures a Channel. Address is required; everything else
// has a default.
type Config struct {
	// Address is the controller push endpoint in "host:port" form.
	Address string

	// Dialer opens connections. Nil means TCP.
	Dialer Dialer

	// BaseDelay is the first reconnect delay; it doubles each failed
	// cycle up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the reconnect delay.
	MaxDelay time.Duration

	// MaxAttempts caps consecutive failed cycles. Once reached,
	// automatic reconnection stops until an explicit Connect.
	MaxAttempts int

	// HeartbeatInterval is the liveness ping period while connected.
	HeartbeatInterval time.Duration

	// Clock drives the backoff timer and the heartbeat. Nil means
	// the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Channel owns one push connection to the controller, reconnecting
// with bounded exponential backoff and fanning out inbound messages
// and status changes to subscribers. Construct with New; the channel
// stays idle until Connect.
type Channel struct {
	address           string
	dialer            Dialer
	baseDelay         time.Duration
	maxDelay          time.Duration
	maxAttempts       int
	heartbeatInterval time.Duration
	clock             clock.Clock
	logger            *slog.Logger

	mu sync.Mutex

	status Status
	conn   Conn

	// attempts counts consecutive failed connection cycles. Reset to
	// zero on a successful open, never by Connect itself.
	attempts int

	// generation invalidates goroutines and timers from a previous
	// connection lifecycle. Disconnect bumps it; anything holding an
	// older generation stands down.
	generation int

	// reconnectAllowed is set by Connect and cleared by Disconnect.
	// While clear, no automatic reconnection is scheduled.
	reconnectAllowed bool

	dialing        bool
	reconnectTimer *clock.Timer
	heartbeatStop  chan struct{}

	messageHandlers map[int]func(Message)
	statusHandlers  map[int]func(Status)
	nextHandlerID   int
}

// New creates a Channel. The channel does not connect until Connect
// is called.
func New(config Config) *Channel {
	dialer := config.Dialer
	if dialer == nil {
		dialer = &TCPDialer{}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	channel := &Channel{
		address:           config.Address,
		dialer:            dialer,
		baseDelay:         config.BaseDelay,
		maxDelay:          config.MaxDelay,
		maxAttempts:       config.MaxAttempts,
		heartbeatInterval: config.HeartbeatInterval,
		clock:             clk,
		logger:            logger,
		status:            StatusDisconnected,
		messageHandlers:   make(map[int]func(Message)),
		statusHandlers:    make(map[int]func(Status)),
	}
	if channel.baseDelay <= 0 {
		channel.baseDelay = DefaultBaseDelay
	}
	if channel.maxDelay <= 0 {
		channel.maxDelay = DefaultMaxDelay
	}
	if channel.maxAttempts <= 0 {
		channel.maxAttempts = DefaultMaxAttempts
	}
	if channel.heartbeatInterval <= 0 {
		channel.heartbeatInterval = DefaultHeartbeatInterval
	}
	return channel
}

// Status returns the current connection status.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect opens the channel if it is not already open or opening.
// Idempotent. Re-enables automatic reconnection after a Disconnect
// and retries immediately after the attempt cap was reached. The
// attempt counter resets only when an open succeeds.
func (c *Channel) Connect() {
	c.mu.Lock()
	c.reconnectAllowed = true
	if c.dialing || c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return
	}
	// An explicit Connect supersedes any scheduled retry.
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	generation := c.generation
	c.dialing = true
	c.mu.Unlock()

	c.updateStatus(generation, StatusConnecting)
	go c.dial(generation)
}

// Disconnect closes the channel and suppresses reconnection until the
// next Connect. Cancels any scheduled reconnect and the heartbeat.
// In-flight request/response calls on the separate API channel are
// unaffected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.reconnectAllowed = false
	c.generation++
	generation := c.generation
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	conn := c.conn
	c.conn = nil
	c.dialing = false
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.updateStatus(generation, StatusDisconnected)
}

// Send writes a message to the wire when the channel is open. When it
// is not, the message is dropped with a debug log — Send is
// best-effort and callers must not depend on delivery.
func (c *Channel) Send(message Message) {
	c.mu.Lock()
	conn := c.conn
	open := c.status == StatusConnected
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Debug("push channel send skipped, not connected", "type", message.Type)
		return
	}
	if err := conn.WriteMessage(message); err != nil {
		// The read loop will observe the broken connection and drive
		// the reconnect; nothing to do here beyond recording it.
		c.logger.Warn("push channel write failed", "type", message.Type, "error", err)
	}
}

// OnMessage registers a handler for inbound messages and returns its
// unsubscribe function. Handlers run on the connection's read
// goroutine in wire order; a handler that panics is isolated and
// logged without affecting the others.
func (c *Channel) OnMessage(handler func(Message)) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.messageHandlers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.messageHandlers, id)
		c.mu.Unlock()
	}
}

// OnStatus registers a handler for status changes and returns its
// unsubscribe function. The handler is invoked synchronously with the
// current status before OnStatus returns, so a subscriber registering
// after the channel connected still observes StatusConnected.
func (c *Channel) OnStatus(handler func(Status)) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.statusHandlers[id] = handler
	current := c.status
	c.mu.Unlock()

	c.invokeStatus(handler, current)

	return func() {
		c.mu.Lock()
		delete(c.statusHandlers, id)
		c.mu.Unlock()
	}
}

// dial attempts one connection. Runs outside the lock: dialing can
// block for seconds.
func (c *Channel) dial(generation int) {
	conn, err := c.dialer.DialContext(context.Background(), c.address)

	c.mu.Lock()
	if c.generation != generation || !c.reconnectAllowed {
		// Disconnect happened while dialing. Abandon the result.
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	c.dialing = false
	if err != nil {
		c.attempts++
		c.mu.Unlock()
		c.logger.Warn("push channel dial failed", "address", c.address, "error", err)
		c.updateStatus(generation, StatusError)
		c.scheduleReconnect(generation)
		return
	}

	c.conn = conn
	c.attempts = 0
	heartbeatStop := make(chan struct{})
	c.heartbeatStop = heartbeatStop
	c.mu.Unlock()

	c.logger.Info("push channel connected", "address", c.address)
	c.updateStatus(generation, StatusConnected)
	go c.heartbeatLoop(heartbeatStop)

	// The read loop runs on this goroutine. Delivering the connected
	// status above on the same goroutine guarantees subscribers see
	// the status before any message from this connection.
	c.readLoop(generation, conn)
}

// readLoop delivers inbound messages until the connection fails, then
// drives the teardown and reconnect.
func (c *Channel) readLoop(generation int, conn Conn) {
	var readErr error
	for {
		message, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				// The stream is still aligned. Drop the frame; later
				// valid frames must still reach subscribers.
				c.logger.Warn("dropping malformed push frame", "error", err)
				continue
			}
			readErr = err
			break
		}
		c.dispatchMessage(message)
	}

	c.mu.Lock()
	if c.generation != generation {
		// Disconnect already tore this connection down.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.attempts++
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.mu.Unlock()
	conn.Close()

	status := StatusError
	if errors.Is(readErr, io.EOF) {
		// Clean close from the controller side.
		status = StatusDisconnected
	}
	c.logger.Warn("push channel closed", "error", readErr)
	c.updateStatus(generation, status)
	c.scheduleReconnect(generation)
}

// scheduleReconnect arms the backoff timer for the next automatic
// attempt, unless reconnection is suppressed or the attempt cap is
// reached.
func (c *Channel) scheduleReconnect(generation int) {
	c.mu.Lock()
	if c.generation != generation || !c.reconnectAllowed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.maxAttempts {
		c.mu.Unlock()
		c.logger.Error("push channel reconnect attempts exhausted",
			"attempts", c.maxAttempts,
			"address", c.address,
		)
		return
	}

	// attempts was already incremented for the cycle that just
	// failed; the first retry uses the base delay.
	delay := c.backoffDelay(c.attempts - 1)
	attempt := c.attempts
	c.reconnectTimer = c.clock.AfterFunc(delay, func() {
		c.redial(generation)
	})
	c.mu.Unlock()

	c.logger.Info("push channel reconnect scheduled",
		"delay", delay,
		"attempt", attempt,
		"max_attempts", c.maxAttempts,
	)
}

// backoffDelay computes min(baseDelay * 2^exponent, maxDelay).
func (c *Channel) backoffDelay(exponent int) time.Duration {
	delay := c.baseDelay
	for i := 0; i < exponent; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

// redial is the backoff timer callback.
func (c *Channel) redial(generation int) {
	c.mu.Lock()
	if c.generation != generation || !c.reconnectAllowed || c.dialing || c.status == StatusConnected {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.dialing = true
	c.mu.Unlock()

	c.updateStatus(generation, StatusConnecting)
	// A new goroutine, not a synchronous call: the timer callback must
	// return promptly, and a successful dial turns into the
	// long-running read loop.
	go c.dial(generation)
}

// heartbeatLoop sends a liveness ping on a fixed interval while the
// connection is up. If the channel is not open when the interval
// fires, Send drops the ping — it is never queued or retried.
func (c *Channel) heartbeatLoop(stop <-chan struct{}) {
	ticker := c.clock.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Send(NewPing())
		}
	}
}

// updateStatus records a status transition and fans it out. No-op if
// the generation is stale or the status did not change.
func (c *Channel) updateStatus(generation int, status Status) {
	c.mu.Lock()
	if c.generation != generation || c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	handlers := c.statusHandlersLocked()
	c.mu.Unlock()

	for _, handler := range handlers {
		c.invokeStatus(handler, status)
	}
}

// dispatchMessage fans one inbound message out to subscribers in
// registration order.
func (c *Channel) dispatchMessage(message Message) {
	c.mu.Lock()
	handlers := c.messageHandlersLocked()
	c.mu.Unlock()

	for _, handler := range handlers {
		c.invokeMessage(handler, message)
	}
}

// statusHandlersLocked snapshots the status subscribers in
// registration order. Iterating a snapshot means a handler
// unsubscribing itself (or another) mid-dispatch cannot corrupt the
// in-progress iteration.
func (c *Channel) statusHandlersLocked() []func(Status) {
	ids := make([]int, 0, len(c.statusHandlers))
	for id := range c.statusHandlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(Status), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.statusHandlers[id])
	}
	return handlers
}

func (c *Channel) messageHandlersLocked() []func(Message) {
	ids := make([]int, 0, len(c.messageHandlers))
	for id := range c.messageHandlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(Message), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.messageHandlers[id])
	}
	return handlers
}

func (c *Channel) invokeStatus(handler func(Status), status Status) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("status handler panicked", "panic", r)
		}
	}()
	handler(status)
}

func (c *Channel) invokeMessage(handler func(Message), message Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panicked", "panic", r, "type", message.Type)
		}
	}()
	handler(message)
}
