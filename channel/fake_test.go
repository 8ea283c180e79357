// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// readEvent is one scripted outcome for fakeConn.ReadMessage.
type readEvent struct {
	message Message
	err     error
}

// fakeConn is an in-memory Conn scripted by tests: Deliver queues
// inbound frames, Fail injects read errors, writes are captured on a
// channel.
type fakeConn struct {
	events chan readEvent
	writes chan Message

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan readEvent, 64),
		writes: make(chan Message, 64),
		closed: make(chan struct{}),
	}
}

// Deliver queues an inbound message for ReadMessage.
func (c *fakeConn) Deliver(message Message) {
	c.events <- readEvent{message: message}
}

// Fail queues a read error. Wrap ErrMalformedFrame for a droppable
// frame; anything else ends the connection.
func (c *fakeConn) Fail(err error) {
	c.events <- readEvent{err: err}
}

func (c *fakeConn) ReadMessage() (Message, error) {
	select {
	case event := <-c.events:
		return event.message, event.err
	case <-c.closed:
		return Message{}, io.EOF
	}
}

func (c *fakeConn) WriteMessage(message Message) error {
	select {
	case <-c.closed:
		return fmt.Errorf("write on closed connection")
	case c.writes <- message:
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer scripts dial outcomes per attempt and signals every
// attempt on the dialed channel before returning.
type fakeDialer struct {
	mu      sync.Mutex
	attempt int

	// script returns the outcome for the given 1-based attempt.
	script func(attempt int) (Conn, error)

	// dialed receives the attempt number as each dial happens.
	dialed chan int
}

func newFakeDialer(script func(attempt int) (Conn, error)) *fakeDialer {
	return &fakeDialer{
		script: script,
		dialed: make(chan int, 64),
	}
}

func (d *fakeDialer) DialContext(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.attempt++
	attempt := d.attempt
	d.mu.Unlock()

	conn, err := d.script(attempt)
	d.dialed <- attempt
	return conn, err
}

func (d *fakeDialer) attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempt
}

// alwaysFailDialer fails every attempt.
func alwaysFailDialer() *fakeDialer {
	return newFakeDialer(func(int) (Conn, error) {
		return nil, fmt.Errorf("connection refused")
	})
}

// singleConnDialer hands out the given conn on the first attempt and
// fails afterwards.
func singleConnDialer(conn *fakeConn) *fakeDialer {
	return newFakeDialer(func(attempt int) (Conn, error) {
		if attempt == 1 {
			return conn, nil
		}
		return nil, fmt.Errorf("connection refused")
	})
}
