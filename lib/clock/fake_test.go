// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	t.Parallel()
	fake := Fake(testEpoch)

	var fired atomic.Int32
	fake.AfterFunc(5*time.Second, func() { fired.Add(1) })

	fake.Advance(4 * time.Second)
	if got := fired.Load(); got != 0 {
		t.Fatalf("fired %d times before deadline, want 0", got)
	}

	fake.Advance(time.Second)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times after deadline, want 1", got)
	}

	// Advancing further must not fire the one-shot timer again.
	fake.Advance(time.Minute)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times total, want 1", got)
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	t.Parallel()
	fake := Fake(testEpoch)

	var fired atomic.Int32
	timer := fake.AfterFunc(time.Second, func() { fired.Add(1) })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}

	fake.Advance(time.Minute)
	if got := fired.Load(); got != 0 {
		t.Fatalf("stopped timer fired %d times", got)
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	t.Parallel()
	fake := Fake(testEpoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		fake.Advance(time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("no tick after advance %d", i+1)
		}
	}
}

func TestFakeCallbackMayRegisterTimer(t *testing.T) {
	t.Parallel()
	fake := Fake(testEpoch)

	// A callback registering a follow-up timer within the advance
	// window must see it fire in the same Advance call. This is the
	// shape of the reconnect backoff chain.
	var chain atomic.Int32
	fake.AfterFunc(time.Second, func() {
		chain.Add(1)
		fake.AfterFunc(time.Second, func() { chain.Add(1) })
	})

	fake.Advance(2 * time.Second)
	if got := chain.Load(); got != 2 {
		t.Fatalf("chained callbacks fired %d times, want 2", got)
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	t.Parallel()
	fake := Fake(testEpoch)

	done := make(chan struct{})
	go func() {
		fake.AfterFunc(time.Second, func() {})
		close(done)
	}()

	fake.WaitForTimers(1)
	<-done
	if fake.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", fake.PendingCount())
	}
}
