// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vigil-home/vigil/alarm"
	"github.com/vigil-home/vigil/channel"
	"github.com/vigil-home/vigil/controller"
	"github.com/vigil-home/vigil/lib/clock"
	"github.com/vigil-home/vigil/lib/codec"
)

// simulatorConfig configures the simulated controller.
type simulatorConfig struct {
	logger *slog.Logger
	clk    clock.Clock

	// code is the arm/disarm credential. Empty disables the
	// credential requirement.
	code string

	// Delay phases, in whole seconds.
	exitDelay       int
	entryDelay      int
	triggerDuration int

	forceArmEnabled bool
}

// apiError is a controller-style command rejection.
type apiError struct {
	status  int
	code    controller.Code
	message string
}

// simulator is an in-memory alarm controller: a mode state machine
// with delay phases, a sensor inventory, and a set of push
// connections that receive the full state on every transition and
// countdown second.
type simulator struct {
	logger *slog.Logger
	clk    clock.Clock
	config simulatorConfig

	mu sync.Mutex

	snapshot  alarm.Snapshot
	countdown *alarm.Countdown

	// armTarget is the armed mode to enter when the exit delay
	// completes.
	armTarget alarm.Mode

	sensors []alarm.Sensor

	// generation invalidates tick callbacks from a superseded phase.
	generation int
	timer      *clock.Timer

	conns      map[int]channel.Conn
	nextConnID int
}

func newSimulator(config simulatorConfig) *simulator {
	if config.logger == nil {
		config.logger = slog.Default()
	}
	if config.clk == nil {
		config.clk = clock.Real()
	}
	return &simulator{
		logger: config.logger,
		clk:    config.clk,
		config: config,
		snapshot: alarm.Snapshot{
			Mode:      alarm.ModeDisarmed,
			EnteredAt: config.clk.Now(),
		},
		sensors: []alarm.Sensor{
			{EntityID: "binary_sensor.front_door", Active: true, State: alarm.SensorClosed, UsedInRules: true},
			{EntityID: "binary_sensor.back_door", Active: true, State: alarm.SensorClosed, UsedInRules: true},
			{EntityID: "binary_sensor.hallway_motion", Active: true, State: alarm.SensorClosed, UsedInRules: true},
		},
		conns: make(map[int]channel.Conn),
	}
}

// settings returns the simulated settings profile.
func (s *simulator) settings() alarm.Settings {
	codeRequired := s.config.code != ""
	return alarm.Settings{
		CodeArmRequired:       &codeRequired,
		AvailableArmingStates: append([]alarm.Mode(nil), alarm.DefaultArmingStates...),
		SensorBehavior:        alarm.SensorBehavior{ForceArmEnabled: s.config.forceArmEnabled},
	}
}

// sensorInventory returns a copy of the sensor inventory.
func (s *simulator) sensorInventory() []alarm.Sensor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alarm.Sensor(nil), s.sensors...)
}

// document returns the current authoritative state.
func (s *simulator) document() controller.StateDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked()
}

func (s *simulator) documentLocked() controller.StateDocument {
	document := controller.StateDocument{Snapshot: s.snapshot}
	if s.countdown != nil {
		countdown := *s.countdown
		document.Countdown = &countdown
	}
	return document
}

// arm starts the exit delay toward the given armed mode.
func (s *simulator) arm(target alarm.Mode, code string, force bool) (controller.StateDocument, *apiError) {
	if rejection := s.checkCode(code); rejection != nil {
		return controller.StateDocument{}, rejection
	}
	if !target.Armed() {
		return controller.StateDocument{}, &apiError{
			status:  http.StatusBadRequest,
			code:    controller.CodeInvalidArmTarget,
			message: "target is not an armed mode",
		}
	}
	valid := false
	for _, mode := range s.settings().AvailableArmingStates {
		if mode == target {
			valid = true
			break
		}
	}
	if !valid {
		return controller.StateDocument{}, &apiError{
			status:  http.StatusBadRequest,
			code:    controller.CodeInvalidArmTarget,
			message: "target is not an available arming state",
		}
	}
	_ = force // sensor gating is the client's concern; the simulator accepts

	s.mu.Lock()
	s.armTarget = target
	if s.config.exitDelay > 0 {
		s.setModeLocked(alarm.ModeArming, &alarm.Countdown{
			Category:  alarm.CountdownExit,
			Remaining: s.config.exitDelay,
			Total:     s.config.exitDelay,
		})
	} else {
		s.setModeLocked(target, nil)
	}
	document := s.documentLocked()
	s.mu.Unlock()

	s.broadcast(document)
	return document, nil
}

// disarm returns to disarmed from any mode.
func (s *simulator) disarm(code string) (controller.StateDocument, *apiError) {
	if rejection := s.checkCode(code); rejection != nil {
		return controller.StateDocument{}, rejection
	}

	s.mu.Lock()
	s.setModeLocked(alarm.ModeDisarmed, nil)
	document := s.documentLocked()
	s.mu.Unlock()

	s.broadcast(document)
	return document, nil
}

// cancel aborts a running exit delay.
func (s *simulator) cancel() (controller.StateDocument, *apiError) {
	s.mu.Lock()
	if s.snapshot.Mode != alarm.ModeArming {
		s.mu.Unlock()
		return controller.StateDocument{}, &apiError{
			status:  http.StatusConflict,
			code:    controller.CodeNotArming,
			message: "no exit delay running",
		}
	}
	s.setModeLocked(alarm.ModeDisarmed, nil)
	document := s.documentLocked()
	s.mu.Unlock()

	s.broadcast(document)
	return document, nil
}

// trip simulates an entry sensor opening while armed: the entry delay
// starts, and the alarm triggers when it elapses. A no-op outside the
// armed modes.
func (s *simulator) trip() controller.StateDocument {
	s.mu.Lock()
	if !s.snapshot.Mode.Armed() {
		document := s.documentLocked()
		s.mu.Unlock()
		return document
	}
	if s.config.entryDelay > 0 {
		s.setModeLocked(alarm.ModePending, &alarm.Countdown{
			Category:  alarm.CountdownEntry,
			Remaining: s.config.entryDelay,
			Total:     s.config.entryDelay,
		})
	} else {
		s.setModeLocked(alarm.ModeTriggered, s.triggerCountdown())
	}
	document := s.documentLocked()
	s.mu.Unlock()

	s.broadcast(document)
	return document
}

// setSensor updates one sensor's reported state. Returns false when
// the entity is unknown.
func (s *simulator) setSensor(entityID string, state alarm.SensorState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sensors {
		if s.sensors[i].EntityID == entityID {
			s.sensors[i].State = state
			return true
		}
	}
	return false
}

func (s *simulator) checkCode(code string) *apiError {
	if s.config.code == "" {
		return nil
	}
	if code == "" {
		return &apiError{
			status:  http.StatusBadRequest,
			code:    controller.CodeCodeRequired,
			message: "a code is required",
		}
	}
	if code != s.config.code {
		return &apiError{
			status:  http.StatusBadRequest,
			code:    controller.CodeInvalidCode,
			message: "wrong code",
		}
	}
	return nil
}

// setModeLocked transitions the state machine: install the snapshot
// and countdown, invalidate the previous phase's timer, and arm the
// tick timer when a countdown runs. Caller holds s.mu.
func (s *simulator) setModeLocked(mode alarm.Mode, countdown *alarm.Countdown) {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	now := s.clk.Now()
	s.snapshot = alarm.Snapshot{Mode: mode, EnteredAt: now}
	s.countdown = countdown
	if countdown != nil {
		exitAt := now.Add(time.Duration(countdown.Remaining) * time.Second)
		s.snapshot.ExitAt = &exitAt
		s.scheduleTickLocked()
	}
	s.logger.Info("alarm mode changed", "mode", mode)
}

func (s *simulator) scheduleTickLocked() {
	generation := s.generation
	s.timer = s.clk.AfterFunc(time.Second, func() { s.tick(generation) })
}

// tick is the per-second countdown callback: decrement and broadcast,
// or advance the state machine when the phase elapses.
func (s *simulator) tick(generation int) {
	s.mu.Lock()
	if generation != s.generation || s.countdown == nil {
		s.mu.Unlock()
		return
	}
	s.countdown.Remaining--
	if s.countdown.Remaining > 0 {
		s.scheduleTickLocked()
		document := s.documentLocked()
		s.mu.Unlock()
		s.broadcast(document)
		return
	}

	switch s.snapshot.Mode {
	case alarm.ModeArming:
		s.setModeLocked(s.armTarget, nil)
	case alarm.ModePending:
		s.setModeLocked(alarm.ModeTriggered, s.triggerCountdown())
	case alarm.ModeTriggered:
		// Siren timeout: give up and disarm.
		s.setModeLocked(alarm.ModeDisarmed, nil)
	default:
		s.countdown = nil
	}
	document := s.documentLocked()
	s.mu.Unlock()
	s.broadcast(document)
}

func (s *simulator) triggerCountdown() *alarm.Countdown {
	if s.config.triggerDuration <= 0 {
		return nil
	}
	return &alarm.Countdown{
		Category:  alarm.CountdownTrigger,
		Remaining: s.config.triggerDuration,
		Total:     s.config.triggerDuration,
	}
}

// servePush accepts push connections until the listener closes.
func (s *simulator) servePush(listener net.Listener) {
	for {
		raw, err := listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(channel.NewConn(raw))
	}
}

// handleConn serves one push connection: send the current state
// immediately, then answer pings until the connection fails.
func (s *simulator) handleConn(conn channel.Conn) {
	s.mu.Lock()
	id := s.nextConnID
	s.nextConnID++
	s.conns[id] = conn
	document := s.documentLocked()
	s.mu.Unlock()
	s.logger.Info("push client connected", "conn", id)

	if message, err := stateMessage(document); err == nil {
		if err := conn.WriteMessage(message); err != nil {
			s.dropConn(id)
			return
		}
	}

	for {
		message, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, channel.ErrMalformedFrame) {
				s.logger.Warn("dropping malformed client frame", "conn", id, "error", err)
				continue
			}
			break
		}
		if message.Type == channel.TypePing {
			var payload channel.PingPayload
			if err := codec.Unmarshal(message.Payload, &payload); err != nil {
				continue
			}
			if err := conn.WriteMessage(channel.NewPong(payload.ID)); err != nil {
				break
			}
		}
	}
	s.dropConn(id)
	s.logger.Info("push client disconnected", "conn", id)
}

func (s *simulator) dropConn(id int) {
	s.mu.Lock()
	conn, ok := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// broadcast sends the state document to every push connection,
// dropping connections whose write fails.
func (s *simulator) broadcast(document controller.StateDocument) {
	message, err := stateMessage(document)
	if err != nil {
		s.logger.Error("encoding state broadcast", "error", err)
		return
	}

	s.mu.Lock()
	conns := make(map[int]channel.Conn, len(s.conns))
	for id, conn := range s.conns {
		conns[id] = conn
	}
	s.mu.Unlock()

	for id, conn := range conns {
		if err := conn.WriteMessage(message); err != nil {
			s.logger.Warn("push write failed, dropping client", "conn", id, "error", err)
			s.dropConn(id)
		}
	}
}

// closeConns closes every push connection, for shutdown.
func (s *simulator) closeConns() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[int]channel.Conn)
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func stateMessage(document controller.StateDocument) (channel.Message, error) {
	return channel.NewAlarmState(channel.AlarmStatePayload{
		Snapshot:  document.Snapshot,
		Countdown: document.Countdown,
	})
}
