// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// ErrMalformedFrame marks an inbound frame that framed correctly but
// failed to decode. The connection is still usable; the frame is
// dropped.
var ErrMalformedFrame = errors.New("malformed frame")

// Compile-time interface checks.
var (
	_ Conn   = (*frameConn)(nil)
	_ Dialer = (*TCPDialer)(nil)
)

// Conn is a single established push-channel connection. ReadMessage
// blocks until a frame arrives or the connection fails; WriteMessage
// is safe for concurrent use (heartbeat and callers share one
// connection).
type Conn interface {
	// ReadMessage reads the next inbound message. An error wrapping
	// ErrMalformedFrame means this frame was unreadable but the
	// connection survives; any other error ends the connection.
	ReadMessage() (Message, error)

	// WriteMessage writes one message to the wire.
	WriteMessage(Message) error

	// Close tears down the connection. Blocked ReadMessage calls
	// return with an error.
	Close() error
}

// Dialer opens push-channel connections to the controller. The
// Channel uses a Dialer so tests and the simulator can substitute
// in-memory connections for real TCP.
type Dialer interface {
	// DialContext opens a connection to the given "host:port"
	// address.
	DialContext(ctx context.Context, address string) (Conn, error)
}

// TCPDialer opens framed connections over TCP. This is the production
// dialer.
type TCPDialer struct {
	// Timeout is the maximum time to wait for the TCP connection to
	// be established. Zero means only the context deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to the controller's push
// endpoint.
func (d *TCPDialer) DialContext(ctx context.Context, address string) (Conn, error) {
	raw, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewConn(raw), nil
}

// NewConn wraps a raw stream in the push-channel framing. The
// simulator uses this for the server side of accepted connections.
func NewConn(raw net.Conn) Conn {
	return &frameConn{raw: raw, reader: bufio.NewReader(raw)}
}

type frameConn struct {
	raw    net.Conn
	reader *bufio.Reader

	// writeMu serializes frame writes so the heartbeat and callers
	// cannot interleave partial frames.
	writeMu sync.Mutex
}

func (c *frameConn) ReadMessage() (Message, error) {
	return ReadFrame(c.reader)
}

func (c *frameConn) WriteMessage(message Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.raw, message)
}

func (c *frameConn) Close() error {
	return c.raw.Close()
}
