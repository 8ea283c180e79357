// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/vigil-home/vigil/alarm"
	"github.com/vigil-home/vigil/lib/codec"
)

// Message types carried on the push channel. Unknown types are
// ignored by receivers, not treated as errors, so controllers can add
// message types without breaking older clients.
const (
	// TypeAlarmState carries the full authoritative alarm state.
	// Server→client only. Payload is AlarmStatePayload.
	TypeAlarmState = "alarm_state"

	// TypePing is the client liveness message, sent on a fixed
	// interval while connected. Payload is PingPayload.
	TypePing = "ping"

	// TypePong is the server's liveness acknowledgment. Payload is
	// PingPayload echoing the ping ID.
	TypePong = "pong"
)

// Message is a single push-channel message: a type tag and an opaque
// payload decoded once the type is known.
type Message struct {
	Type    string          `cbor:"type"`
	Payload codec.RawMessage `cbor:"payload,omitempty"`
}

// AlarmStatePayload is the payload of a TypeAlarmState message. The
// snapshot is complete and replaces all prior state; the countdown is
// present only while the mode has one.
type AlarmStatePayload struct {
	Snapshot  alarm.Snapshot   `cbor:"snapshot"`
	Countdown *alarm.Countdown `cbor:"countdown,omitempty"`
}

// PingPayload carries the liveness correlation ID.
type PingPayload struct {
	ID string `cbor:"id"`
}

// NewAlarmState builds a TypeAlarmState message. Used by the
// simulator and by tests; real controllers produce these server-side.
func NewAlarmState(payload AlarmStatePayload) (Message, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding alarm state payload: %w", err)
	}
	return Message{Type: TypeAlarmState, Payload: data}, nil
}

// NewPing builds a liveness ping with a fresh correlation ID.
func NewPing() Message {
	data, err := codec.Marshal(PingPayload{ID: uuid.NewString()})
	if err != nil {
		// A struct of one string cannot fail deterministic encoding.
		panic("channel: encoding ping payload: " + err.Error())
	}
	return Message{Type: TypePing, Payload: data}
}

// NewPong builds a liveness acknowledgment echoing the ping ID.
func NewPong(id string) Message {
	data, err := codec.Marshal(PingPayload{ID: id})
	if err != nil {
		panic("channel: encoding pong payload: " + err.Error())
	}
	return Message{Type: TypePong, Payload: data}
}

// frameHeaderLength is the fixed frame header size: a 4-byte
// big-endian payload length.
const frameHeaderLength = 4

// maxFrameLength bounds a single frame. 1 MB is generous for alarm
// state documents; anything larger means the stream is desynchronized.
const maxFrameLength = 1 << 20

// WriteFrame writes one framed message to w: [4 bytes body length,
// big-endian uint32] [CBOR-encoded Message].
func WriteFrame(w io.Writer, message Message) error {
	body, err := codec.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding frame body: %w", err)
	}
	if len(body) > maxFrameLength {
		return fmt.Errorf("frame body %d bytes exceeds limit %d", len(body), maxFrameLength)
	}

	var header [frameHeaderLength]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one framed message from r.
//
// A frame whose body fails CBOR decoding returns an error wrapping
// [ErrMalformedFrame]: the length prefix was consumed, the stream is
// still aligned, and the reader may continue with the next frame. Any
// other error (short read, oversized length) means the stream itself
// is broken.
func ReadFrame(r io.Reader) (Message, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > maxFrameLength {
		return Message{}, fmt.Errorf("frame length %d exceeds limit %d", length, maxFrameLength)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("reading frame body: %w", err)
	}

	var message Message
	if err := codec.Unmarshal(body, &message); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if message.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return message, nil
}
