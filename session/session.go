// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vigil-home/vigil/alarm"
	"github.com/vigil-home/vigil/channel"
	"github.com/vigil-home/vigil/controller"
	"github.com/vigil-home/vigil/lib/clock"
	"github.com/vigil-home/vigil/lib/codec"
)

// Config configures a Session. Controller and Channel are required.
type Config struct {
	// Controller is the request/response API client.
	Controller *controller.Client

	// Channel is the push channel delivering authoritative updates.
	Channel *channel.Channel

	// Clock drives the local countdown. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Session is the client-side alarm runtime. It holds the current
// authoritative snapshot, the settings profile, and the sensor
// inventory; projects them into display flags; runs the local
// countdown; and dispatches commands to the controller.
//
// Construct with New, call Start once, Close when done. All methods
// are safe for concurrent use.
type Session struct {
	controller *controller.Client
	channel    *channel.Channel
	countdown  *Countdown
	logger     *slog.Logger

	mu sync.Mutex

	snapshot alarm.Snapshot
	settings alarm.Settings
	sensors  []alarm.Sensor
	flags    alarm.Flags

	started bool
	closed  bool

	// connectedOnce distinguishes the initial connect, whose snapshot
	// Start just fetched, from reconnects that need a state refresh.
	connectedOnce bool

	changeHandlers map[int]func(alarm.Flags)
	tickHandlers   map[int]func(alarm.CountdownCategory, int)
	doneHandlers   map[int]func(alarm.CountdownCategory)
	nextHandlerID  int

	unsubscribeMessage func()
	unsubscribeStatus  func()
}

// New creates a Session. The session is inert until Start.
func New(config Config) *Session {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	session := &Session{
		controller:     config.Controller,
		channel:        config.Channel,
		logger:         logger,
		changeHandlers: make(map[int]func(alarm.Flags)),
		tickHandlers:   make(map[int]func(alarm.CountdownCategory, int)),
		doneHandlers:   make(map[int]func(alarm.CountdownCategory)),
	}
	session.countdown = NewCountdown(CountdownConfig{
		Clock:      config.Clock,
		Logger:     logger,
		OnTick:     session.deliverTick,
		OnComplete: session.deliverDone,
	})
	return session
}

// Start fetches the initial settings profile, sensor inventory, and
// alarm state, then subscribes to the push channel and connects it.
//
// The state fetch is required: without a snapshot the session has
// nothing to run on. Settings and sensor fetch failures are tolerated —
// the projection fails safe (credential required, empty inventory) and
// the next successful refresh fills them in.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.mu.Unlock()

	settings, err := s.controller.Settings(ctx)
	if err != nil {
		s.logger.Warn("settings fetch failed, failing safe", "error", err)
	}
	sensors, err := s.controller.Sensors(ctx)
	if err != nil {
		s.logger.Warn("sensor inventory fetch failed", "error", err)
	}
	s.mu.Lock()
	s.settings = settings
	s.sensors = sensors
	s.mu.Unlock()

	document, err := s.controller.State(ctx)
	if err != nil {
		return fmt.Errorf("fetching initial alarm state: %w", err)
	}
	s.applyState(document.Snapshot, document.Countdown)

	s.unsubscribeMessage = s.channel.OnMessage(s.handleMessage)
	s.unsubscribeStatus = s.channel.OnStatus(s.handleStatus)
	s.channel.Connect()
	return nil
}

// Close disconnects the push channel and halts the countdown.
// Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribeMessage := s.unsubscribeMessage
	unsubscribeStatus := s.unsubscribeStatus
	s.mu.Unlock()

	if unsubscribeMessage != nil {
		unsubscribeMessage()
	}
	if unsubscribeStatus != nil {
		unsubscribeStatus()
	}
	s.channel.Disconnect()
	s.countdown.Close()
}

// Snapshot returns the current authoritative snapshot.
func (s *Session) Snapshot() alarm.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Flags returns the current projection.
func (s *Session) Flags() alarm.Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// Settings returns the current settings profile.
func (s *Session) Settings() alarm.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Sensors returns the current sensor inventory.
func (s *Session) Sensors() []alarm.Sensor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alarm.Sensor(nil), s.sensors...)
}

// Countdown returns the current countdown category and remaining
// seconds, and whether a countdown is ticking.
func (s *Session) Countdown() (alarm.CountdownCategory, int, bool) {
	return s.countdown.Remaining()
}

// ConnectionStatus returns the push channel's connection status.
func (s *Session) ConnectionStatus() channel.Status {
	return s.channel.Status()
}

// Arm dispatches an arm command. The snapshot changes only when the
// controller confirms; a rejection leaves it untouched. Classify
// rejections with controller.IsValidation and friends.
func (s *Session) Arm(ctx context.Context, target alarm.Mode, code string, force bool) error {
	document, err := s.controller.Arm(ctx, controller.ArmCommand{
		Target: target,
		Code:   code,
		Force:  force,
	})
	if err != nil {
		return err
	}
	s.applyState(document.Snapshot, document.Countdown)
	return nil
}

// Disarm dispatches a disarm command.
func (s *Session) Disarm(ctx context.Context, code string) error {
	document, err := s.controller.Disarm(ctx, code)
	if err != nil {
		return err
	}
	s.applyState(document.Snapshot, document.Countdown)
	return nil
}

// CancelArming aborts a running exit delay. The code is optional.
// Answered locally with CodeNotArming when no exit delay is running,
// without a round trip.
func (s *Session) CancelArming(ctx context.Context, code string) error {
	s.mu.Lock()
	mode := s.snapshot.Mode
	s.mu.Unlock()
	if mode != alarm.ModeArming {
		return &controller.Error{
			Code:    controller.CodeNotArming,
			Message: "no exit delay running",
		}
	}

	document, err := s.controller.CancelArming(ctx, code)
	if err != nil {
		return err
	}
	s.applyState(document.Snapshot, document.Countdown)
	return nil
}

// RefreshSensors re-fetches the sensor inventory and reprojects.
func (s *Session) RefreshSensors(ctx context.Context) error {
	sensors, err := s.controller.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("refreshing sensor inventory: %w", err)
	}
	s.mu.Lock()
	s.sensors = sensors
	snapshot := s.snapshot
	s.mu.Unlock()
	s.applyState(snapshot, nil)
	return nil
}

// OnChange registers a handler invoked whenever the projection
// changes, and returns its unsubscribe function. Unchanged projections
// are not delivered.
func (s *Session) OnChange(handler func(alarm.Flags)) func() {
	s.mu.Lock()
	id := s.nextHandlerID
	s.nextHandlerID++
	s.changeHandlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.changeHandlers, id)
		s.mu.Unlock()
	}
}

// OnCountdownTick registers a handler for local countdown ticks.
func (s *Session) OnCountdownTick(handler func(alarm.CountdownCategory, int)) func() {
	s.mu.Lock()
	id := s.nextHandlerID
	s.nextHandlerID++
	s.tickHandlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.tickHandlers, id)
		s.mu.Unlock()
	}
}

// OnCountdownDone registers a handler for countdown completion.
func (s *Session) OnCountdownDone(handler func(alarm.CountdownCategory)) func() {
	s.mu.Lock()
	id := s.nextHandlerID
	s.nextHandlerID++
	s.doneHandlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.doneHandlers, id)
		s.mu.Unlock()
	}
}

// OnConnectionStatus registers a handler for push channel status
// changes, delegating to the channel's own subscription.
func (s *Session) OnConnectionStatus(handler func(channel.Status)) func() {
	return s.channel.OnStatus(handler)
}

// handleMessage is the push channel message handler. Unknown message
// types are ignored so the controller can add types without breaking
// older clients.
func (s *Session) handleMessage(message channel.Message) {
	switch message.Type {
	case channel.TypeAlarmState:
		var payload channel.AlarmStatePayload
		if err := codec.Unmarshal(message.Payload, &payload); err != nil {
			s.logger.Warn("undecodable alarm state payload", "error", err)
			return
		}
		s.applyState(payload.Snapshot, payload.Countdown)
	case channel.TypePong:
		// Liveness acknowledgment; nothing to reconcile.
	default:
		s.logger.Debug("ignoring unknown push message", "type", message.Type)
	}
}

// handleStatus refreshes the authoritative state after a reconnect:
// pushes missed while disconnected are gone, so the session re-fetches
// rather than trusting its stale snapshot. The initial connect is
// exempt — Start fetched the snapshot moments before.
func (s *Session) handleStatus(status channel.Status) {
	if status != channel.StatusConnected {
		return
	}
	s.mu.Lock()
	first := !s.connectedOnce
	s.connectedOnce = true
	s.mu.Unlock()
	if first {
		return
	}
	go func() {
		document, err := s.controller.State(context.Background())
		if err != nil {
			s.logger.Warn("state refresh after reconnect failed", "error", err)
			return
		}
		s.applyState(document.Snapshot, document.Countdown)
	}()
}

// applyState installs a new authoritative snapshot wholesale,
// reprojects, reconciles the countdown, and notifies change
// subscribers when the projection actually changed.
func (s *Session) applyState(snapshot alarm.Snapshot, countdown *alarm.Countdown) {
	s.mu.Lock()
	leavingCountdown := s.snapshot.Mode.HasCountdown() && !snapshot.Mode.HasCountdown()
	s.snapshot = snapshot
	flags := alarm.Project(snapshot, s.settings, s.sensors)
	changed := !flags.Equal(s.flags)
	s.flags = flags
	handlers := s.changeHandlersLocked()
	s.mu.Unlock()

	switch {
	case snapshot.Mode.HasCountdown() && countdown != nil:
		s.countdown.Sync(countdown.Category, countdown.Remaining, countdown.Total)
	case snapshot.Mode.HasCountdown():
		// A countdown mode without a payload: keep whatever the local
		// countdown believes rather than inventing a value.
	case leavingCountdown:
		s.countdown.Pause()
	}

	if changed {
		for _, handler := range handlers {
			handler(flags)
		}
	}
}

func (s *Session) deliverTick(category alarm.CountdownCategory, remaining int) {
	s.mu.Lock()
	handlers := make([]func(alarm.CountdownCategory, int), 0, len(s.tickHandlers))
	for _, id := range sortedKeys(s.tickHandlers) {
		handlers = append(handlers, s.tickHandlers[id])
	}
	s.mu.Unlock()
	for _, handler := range handlers {
		handler(category, remaining)
	}
}

func (s *Session) deliverDone(category alarm.CountdownCategory) {
	s.mu.Lock()
	handlers := make([]func(alarm.CountdownCategory), 0, len(s.doneHandlers))
	for _, id := range sortedKeys(s.doneHandlers) {
		handlers = append(handlers, s.doneHandlers[id])
	}
	s.mu.Unlock()
	for _, handler := range handlers {
		handler(category)
	}
}

// changeHandlersLocked snapshots the change subscribers in
// registration order. Caller holds s.mu.
func (s *Session) changeHandlersLocked() []func(alarm.Flags) {
	handlers := make([]func(alarm.Flags), 0, len(s.changeHandlers))
	for _, id := range sortedKeys(s.changeHandlers) {
		handlers = append(handlers, s.changeHandlers[id])
	}
	return handlers
}

// sortedKeys returns the map's keys in ascending order, preserving
// handler registration order across dispatches.
func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}
