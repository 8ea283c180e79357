// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel maintains the persistent push connection to the
// alarm controller.
//
// The package is organized around the connection lifecycle:
//
//   - protocol.go: wire format (length-prefixed CBOR frames) and the
//     message vocabulary
//   - conn.go: the Conn and Dialer interfaces plus the TCP
//     implementation; tests and the simulator substitute their own
//   - channel.go: the Channel itself — connection state machine,
//     bounded exponential reconnect backoff, heartbeat, and
//     subscriber fan-out
//
// A [Channel] owns exactly one connection at a time and reports its
// state through the [Status] enum, which no other component writes.
// Connection faults are absorbed here: they surface to subscribers
// only as status transitions, never as errors thrown to callers.
// Sends are best-effort — a Send on a channel that is not open is a
// logged no-op, and callers must not treat a completed Send as a
// completed delivery.
//
// Subscribers register with OnMessage and OnStatus; both return an
// unsubscribe function. OnStatus delivers the current status
// synchronously at registration time, so a late subscriber cannot
// miss the initial state. Messages are delivered to subscribers in
// wire order, and a status change is always delivered before any
// message received after that change. A subscriber that panics is
// isolated and logged; delivery to the remaining subscribers
// continues.
package channel
