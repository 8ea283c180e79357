// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package alarm

import (
	"testing"
	"time"
)

func boolPtr(v bool) *bool { return &v }

func TestProjectModeFlagsPartition(t *testing.T) {
	t.Parallel()

	// Every mode sets exactly one of the five flags.
	for _, mode := range Modes {
		flags := Project(Snapshot{Mode: mode}, Settings{}, nil)

		set := 0
		for _, flag := range []bool{flags.IsDisarmed, flags.IsArming, flags.IsPending, flags.IsTriggered, flags.IsArmed} {
			if flag {
				set++
			}
		}
		if set != 1 {
			t.Errorf("mode %s: %d mode flags set, want exactly 1", mode, set)
		}
	}
}

func TestProjectModeFlagValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mode  Mode
		check func(Flags) bool
		name  string
	}{
		{ModeDisarmed, func(f Flags) bool { return f.IsDisarmed }, "IsDisarmed"},
		{ModeArming, func(f Flags) bool { return f.IsArming }, "IsArming"},
		{ModePending, func(f Flags) bool { return f.IsPending }, "IsPending"},
		{ModeTriggered, func(f Flags) bool { return f.IsTriggered }, "IsTriggered"},
		{ModeArmedHome, func(f Flags) bool { return f.IsArmed }, "IsArmed"},
		{ModeArmedAway, func(f Flags) bool { return f.IsArmed }, "IsArmed"},
		{ModeArmedNight, func(f Flags) bool { return f.IsArmed }, "IsArmed"},
		{ModeArmedVacation, func(f Flags) bool { return f.IsArmed }, "IsArmed"},
		{ModeArmedCustomBypass, func(f Flags) bool { return f.IsArmed }, "IsArmed"},
	}
	for _, tc := range cases {
		flags := Project(Snapshot{Mode: tc.mode}, Settings{}, nil)
		if !tc.check(flags) {
			t.Errorf("mode %s: %s not set", tc.mode, tc.name)
		}
	}
}

func TestProjectCodeRequiredFailsSafe(t *testing.T) {
	t.Parallel()

	// Settings unavailable: require a credential.
	flags := Project(Snapshot{Mode: ModeDisarmed}, Settings{}, nil)
	if !flags.CodeRequiredForArm {
		t.Error("CodeRequiredForArm false with no settings, want fail-safe true")
	}

	flags = Project(Snapshot{Mode: ModeDisarmed}, Settings{CodeArmRequired: boolPtr(false)}, nil)
	if flags.CodeRequiredForArm {
		t.Error("CodeRequiredForArm true despite explicit false setting")
	}
}

func TestProjectArmingStatesDefault(t *testing.T) {
	t.Parallel()

	flags := Project(Snapshot{Mode: ModeDisarmed}, Settings{}, nil)
	want := []Mode{ModeArmedHome, ModeArmedAway, ModeArmedNight, ModeArmedVacation}
	if len(flags.AvailableArmingStates) != len(want) {
		t.Fatalf("AvailableArmingStates = %v, want %v", flags.AvailableArmingStates, want)
	}
	for i, mode := range want {
		if flags.AvailableArmingStates[i] != mode {
			t.Errorf("AvailableArmingStates[%d] = %s, want %s", i, flags.AvailableArmingStates[i], mode)
		}
	}

	configured := Settings{AvailableArmingStates: []Mode{ModeArmedAway}}
	flags = Project(Snapshot{Mode: ModeDisarmed}, configured, nil)
	if len(flags.AvailableArmingStates) != 1 || flags.AvailableArmingStates[0] != ModeArmedAway {
		t.Errorf("AvailableArmingStates = %v, want [armed_away]", flags.AvailableArmingStates)
	}
}

func TestProjectDeterministic(t *testing.T) {
	t.Parallel()

	exitAt := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	snapshot := Snapshot{
		Mode:      ModeArming,
		EnteredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ExitAt:    &exitAt,
	}
	settings := Settings{
		CodeArmRequired:       boolPtr(true),
		AvailableArmingStates: []Mode{ModeArmedHome, ModeArmedAway},
		SensorBehavior:        SensorBehavior{ForceArmEnabled: true},
	}
	sensors := []Sensor{
		{EntityID: "binary_sensor.front_door", Active: true, State: SensorOpen, UsedInRules: true},
		{EntityID: "binary_sensor.garage", Active: true, State: SensorUnknown, UsedInRules: true},
	}

	first := Project(snapshot, settings, sensors)
	second := Project(snapshot, settings, sensors)
	if !first.Equal(second) {
		t.Errorf("Project not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestProjectPendingScenario(t *testing.T) {
	t.Parallel()

	// A pending snapshot with an entry countdown projects IsPending
	// and nothing else.
	flags := Project(Snapshot{Mode: ModePending, EnteredAt: time.Now()}, Settings{}, nil)
	if !flags.IsPending {
		t.Error("IsPending not set")
	}
	if flags.IsDisarmed || flags.IsArming || flags.IsTriggered || flags.IsArmed {
		t.Errorf("unexpected extra flags: %+v", flags)
	}
}
