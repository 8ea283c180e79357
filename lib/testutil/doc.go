// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Vigil packages.
//
// [RequireReceive] and [RequireNoReceive] encapsulate the timeout
// safety valve pattern (select with time.After fallback) so individual
// tests do not need direct time.After calls. These are the only places
// in the test suite where real wall-clock timeouts appear; everything
// else runs on the fake clock.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Vigil-internal dependencies.
package testutil
