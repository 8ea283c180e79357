// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// Package alarm defines the authoritative alarm state model and the
// pure projection that derives UI-facing flags from it.
//
// The controller owns the state: [Snapshot] values arrive over the
// push channel or as action responses and are replaced wholesale,
// never field-patched, so readers can never observe a mode that
// disagrees with its timestamps. The client invents nothing — every
// [Mode] value originates from the controller.
//
// [Project] is the single place derived flags are computed. It is a
// pure function of (snapshot, settings, sensors): no side effects, no
// timer or network access, identical inputs produce identical output.
// Callers that cache flags can rely on [Flags.Equal] for change
// detection.
//
// The sensor gate (OpenSensors, UnknownSensors, CanArm) partitions the
// sensor inventory into blocking and non-blocking sets. The partition
// is deterministic and independent of inventory order; display
// ordering is a presentation concern, not a gating concern.
package alarm
