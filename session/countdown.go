// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vigil-home/vigil/alarm"
	"github.com/vigil-home/vigil/lib/clock"
)

// tickInterval is the local countdown resolution. The controller
// reports whole seconds, so the reconciler ticks in whole seconds.
const tickInterval = time.Second

// CountdownConfig configures a Countdown reconciler.
type CountdownConfig struct {
	// Clock drives the tick timer. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// OnTick is invoked after every local tick with the new remaining
	// value, down to and including zero. Nil means no tick callback.
	OnTick func(category alarm.CountdownCategory, remaining int)

	// OnComplete is invoked exactly once when a countdown reaches
	// zero. Nil means no completion callback.
	OnComplete func(category alarm.CountdownCategory)
}

// Countdown keeps a local once-per-second countdown between
// authoritative server updates. The server value always wins: Sync
// discards whatever the local timer believed and restarts from the
// reported remaining. Safe for concurrent use.
type Countdown struct {
	clock      clock.Clock
	logger     *slog.Logger
	onTick     func(alarm.CountdownCategory, int)
	onComplete func(alarm.CountdownCategory)

	mu sync.Mutex

	// generation invalidates timer callbacks from a superseded run.
	generation int

	category  alarm.CountdownCategory
	remaining int
	total     int
	running   bool

	// finished marks a countdown that already delivered its
	// completion, so repeated zero-remaining syncs of the same
	// category cannot deliver it twice.
	finished bool

	closed bool
	timer  *clock.Timer
}

// NewCountdown creates an idle Countdown.
func NewCountdown(config CountdownConfig) *Countdown {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onTick := config.OnTick
	if onTick == nil {
		onTick = func(alarm.CountdownCategory, int) {}
	}
	onComplete := config.OnComplete
	if onComplete == nil {
		onComplete = func(alarm.CountdownCategory) {}
	}
	return &Countdown{
		clock:      clk,
		logger:     logger,
		onTick:     onTick,
		onComplete: onComplete,
	}
}

// Sync reconciles the local countdown with a server-reported one,
// replacing any run in progress. Remaining is clamped to total. A sync
// with nothing left to count (remaining or total at or below zero)
// completes immediately without starting a timer.
func (c *Countdown) Sync(category alarm.CountdownCategory, remaining, total int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.haltLocked()
	if remaining > total {
		remaining = total
	}

	alreadyFinished := c.finished && c.category == category
	c.category = category
	c.total = total
	c.remaining = remaining

	if total <= 0 || remaining <= 0 {
		c.remaining = 0
		c.finished = true
		c.mu.Unlock()
		if !alreadyFinished {
			c.onComplete(category)
		}
		return
	}

	c.finished = false
	c.running = true
	generation := c.generation
	c.timer = c.clock.AfterFunc(tickInterval, func() { c.tick(generation) })
	c.mu.Unlock()

	c.logger.Debug("countdown synchronized",
		"category", category,
		"remaining", remaining,
		"total", total,
	)
}

// tick is the timer callback: decrement, deliver, and either re-arm or
// complete.
func (c *Countdown) tick(generation int) {
	c.mu.Lock()
	if c.closed || generation != c.generation || !c.running {
		// A Sync, Pause, Reset, or Close superseded this run.
		c.mu.Unlock()
		return
	}
	c.remaining--
	remaining := c.remaining
	category := c.category

	if remaining <= 0 {
		c.remaining = 0
		c.running = false
		c.finished = true
		c.timer = nil
		c.mu.Unlock()
		c.onTick(category, 0)
		c.onComplete(category)
		return
	}

	c.timer = c.clock.AfterFunc(tickInterval, func() { c.tick(generation) })
	c.mu.Unlock()
	c.onTick(category, remaining)
}

// Pause halts ticking without clearing the countdown. Remaining keeps
// its current value until the next Sync or Reset.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
}

// Reset halts ticking and restores remaining to the countdown's total.
// No callbacks are delivered.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
	c.remaining = c.total
	c.finished = false
}

// Close halts the countdown permanently. Further calls, including
// Sync, are no-ops. Idempotent.
func (c *Countdown) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.haltLocked()
}

// Remaining returns the current category and remaining value, and
// whether the countdown is actively ticking.
func (c *Countdown) Remaining() (alarm.CountdownCategory, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.category, c.remaining, c.running
}

// haltLocked stops the tick timer and invalidates in-flight callbacks.
// Caller holds c.mu.
func (c *Countdown) haltLocked() {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
}
