// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter instead of calling time.Now,
// time.AfterFunc, or time.NewTicker directly. Real() provides standard
// library behavior; Fake() provides a deterministic clock that advances
// only when Advance is called.
//
// The countdown ticker, the reconnect backoff timer, and the heartbeat
// interval all run on a Clock, which is what makes their tests
// deterministic: a test advances the fake clock by ten seconds and
// observes exactly ten ticks, with no wall-clock sleeps.
//
// # Wiring pattern
//
// Add a Clock field to structs that use time:
//
//	type Channel struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	ch := &Channel{clock: clock.Real()}
//
// In tests:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	ch := &Channel{clock: fake}
//	// ... start goroutines ...
//	fake.WaitForTimers(1)         // wait for a timer to register
//	fake.Advance(5 * time.Second) // fire it deterministically
//
// # FakeClock synchronization
//
// When a goroutine calls AfterFunc or NewTicker on a FakeClock, it
// registers a pending waiter. Use WaitForTimers to block until a given
// number of waiters exist before calling Advance. This removes the race
// between timer registration and time advancement that plagues tests
// synchronized with time.Sleep.
package clock
