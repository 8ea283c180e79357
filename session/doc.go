// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// Package session is the client-side alarm runtime: it keeps one
// authoritative state snapshot synchronized with the controller,
// projects it into display flags, runs the local countdown between
// authoritative updates, and dispatches arm/disarm commands.
//
// The Session never invents state. The controller's answers and push
// messages are the only sources of the snapshot; commands apply their
// result when the controller confirms, never optimistically.
package session
