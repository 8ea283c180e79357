// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net"
	"testing"
	"time"

	"github.com/vigil-home/vigil/alarm"
	"github.com/vigil-home/vigil/channel"
	"github.com/vigil-home/vigil/controller"
	"github.com/vigil-home/vigil/lib/clock"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestArmRunsExitDelayThenArms(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(testEpoch)
	sim := newSimulator(simulatorConfig{clk: fake, exitDelay: 2})

	document, rejection := sim.arm(alarm.ModeArmedAway, "", false)
	if rejection != nil {
		t.Fatalf("arm rejected: %+v", rejection)
	}
	if document.Snapshot.Mode != alarm.ModeArming {
		t.Fatalf("mode = %q, want arming", document.Snapshot.Mode)
	}
	if document.Countdown == nil || document.Countdown.Remaining != 2 {
		t.Fatalf("countdown = %+v, want exit 2", document.Countdown)
	}
	if document.Snapshot.ExitAt == nil || !document.Snapshot.ExitAt.Equal(testEpoch.Add(2*time.Second)) {
		t.Errorf("exit at = %v, want epoch+2s", document.Snapshot.ExitAt)
	}

	fake.Advance(time.Second)
	if document := sim.document(); document.Countdown == nil || document.Countdown.Remaining != 1 {
		t.Fatalf("countdown after 1s = %+v, want remaining 1", document.Countdown)
	}

	fake.Advance(time.Second)
	document = sim.document()
	if document.Snapshot.Mode != alarm.ModeArmedAway {
		t.Errorf("mode = %q after exit delay, want armed_away", document.Snapshot.Mode)
	}
	if document.Countdown != nil {
		t.Errorf("countdown = %+v after arming completed, want nil", document.Countdown)
	}
}

func TestCancelAbortsExitDelay(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(testEpoch)
	sim := newSimulator(simulatorConfig{clk: fake, exitDelay: 10})

	if _, rejection := sim.arm(alarm.ModeArmedHome, "", false); rejection != nil {
		t.Fatalf("arm rejected: %+v", rejection)
	}
	if _, rejection := sim.cancel(); rejection != nil {
		t.Fatalf("cancel rejected: %+v", rejection)
	}
	if got := sim.document().Snapshot.Mode; got != alarm.ModeDisarmed {
		t.Fatalf("mode = %q after cancel, want disarmed", got)
	}

	// The aborted phase's timer must not fire.
	fake.Advance(time.Minute)
	if got := sim.document().Snapshot.Mode; got != alarm.ModeDisarmed {
		t.Errorf("mode = %q after stale timer window, want disarmed", got)
	}
}

func TestTripRunsEntryDelayThenTrigger(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(testEpoch)
	sim := newSimulator(simulatorConfig{clk: fake, exitDelay: 0, entryDelay: 2, triggerDuration: 3})

	if _, rejection := sim.arm(alarm.ModeArmedNight, "", false); rejection != nil {
		t.Fatalf("arm rejected: %+v", rejection)
	}
	if got := sim.document().Snapshot.Mode; got != alarm.ModeArmedNight {
		t.Fatalf("mode = %q with zero exit delay, want armed_night", got)
	}

	document := sim.trip()
	if document.Snapshot.Mode != alarm.ModePending {
		t.Fatalf("mode = %q after trip, want pending", document.Snapshot.Mode)
	}
	if document.Countdown == nil || document.Countdown.Category != alarm.CountdownEntry {
		t.Fatalf("countdown = %+v, want entry", document.Countdown)
	}

	fake.Advance(2 * time.Second)
	document = sim.document()
	if document.Snapshot.Mode != alarm.ModeTriggered {
		t.Fatalf("mode = %q after entry delay, want triggered", document.Snapshot.Mode)
	}
	if document.Countdown == nil || document.Countdown.Category != alarm.CountdownTrigger {
		t.Fatalf("countdown = %+v, want trigger", document.Countdown)
	}

	// Siren timeout returns to disarmed.
	fake.Advance(3 * time.Second)
	if got := sim.document().Snapshot.Mode; got != alarm.ModeDisarmed {
		t.Errorf("mode = %q after siren timeout, want disarmed", got)
	}
}

func TestTripIgnoredWhileDisarmed(t *testing.T) {
	t.Parallel()
	sim := newSimulator(simulatorConfig{clk: clock.Fake(testEpoch), entryDelay: 5})
	if got := sim.trip().Snapshot.Mode; got != alarm.ModeDisarmed {
		t.Errorf("mode = %q after trip while disarmed, want disarmed", got)
	}
}

func TestCredentialValidation(t *testing.T) {
	t.Parallel()
	sim := newSimulator(simulatorConfig{clk: clock.Fake(testEpoch), code: "1234", exitDelay: 10})

	_, rejection := sim.arm(alarm.ModeArmedHome, "", false)
	if rejection == nil || rejection.code != controller.CodeCodeRequired {
		t.Errorf("rejection = %+v, want code_required", rejection)
	}
	_, rejection = sim.arm(alarm.ModeArmedHome, "0000", false)
	if rejection == nil || rejection.code != controller.CodeInvalidCode {
		t.Errorf("rejection = %+v, want invalid_code", rejection)
	}
	_, rejection = sim.arm(alarm.ModeArmedHome, "1234", false)
	if rejection != nil {
		t.Errorf("correct code rejected: %+v", rejection)
	}
}

func TestArmTargetValidation(t *testing.T) {
	t.Parallel()
	sim := newSimulator(simulatorConfig{clk: clock.Fake(testEpoch)})

	_, rejection := sim.arm(alarm.ModePending, "", false)
	if rejection == nil || rejection.code != controller.CodeInvalidArmTarget {
		t.Errorf("rejection = %+v, want invalid_arm_target", rejection)
	}
	_, rejection = sim.cancel()
	if rejection == nil || rejection.code != controller.CodeNotArming {
		t.Errorf("rejection = %+v, want not_arming", rejection)
	}
}

func TestPushConnectionReceivesStateAndPong(t *testing.T) {
	t.Parallel()
	sim := newSimulator(simulatorConfig{clk: clock.Fake(testEpoch), exitDelay: 10})

	serverRaw, clientRaw := net.Pipe()
	go sim.handleConn(channel.NewConn(serverRaw))
	client := channel.NewConn(clientRaw)
	defer client.Close()

	// The current state arrives immediately on connect.
	message, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("reading initial state: %v", err)
	}
	if message.Type != channel.TypeAlarmState {
		t.Fatalf("type = %q, want alarm_state", message.Type)
	}

	// Pings are answered.
	if err := client.WriteMessage(channel.NewPing()); err != nil {
		t.Fatalf("writing ping: %v", err)
	}
	message, err = client.ReadMessage()
	if err != nil {
		t.Fatalf("reading pong: %v", err)
	}
	if message.Type != channel.TypePong {
		t.Fatalf("type = %q, want pong", message.Type)
	}
}
