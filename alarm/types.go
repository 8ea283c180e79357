// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package alarm

import "time"

// Mode is the discrete alarm mode. Exactly one mode is current at any
// time, and its value always originates from the controller.
type Mode string

const (
	ModeDisarmed          Mode = "disarmed"
	ModeArming            Mode = "arming"
	ModeArmedHome         Mode = "armed_home"
	ModeArmedAway         Mode = "armed_away"
	ModeArmedNight        Mode = "armed_night"
	ModeArmedVacation     Mode = "armed_vacation"
	ModeArmedCustomBypass Mode = "armed_custom_bypass"
	ModePending           Mode = "pending"
	ModeTriggered         Mode = "triggered"
)

// Modes lists every valid Mode. Exhaustiveness tests iterate this.
var Modes = []Mode{
	ModeDisarmed,
	ModeArming,
	ModeArmedHome,
	ModeArmedAway,
	ModeArmedNight,
	ModeArmedVacation,
	ModeArmedCustomBypass,
	ModePending,
	ModeTriggered,
}

// Valid reports whether m is a known Mode value.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Armed reports whether m is one of the armed modes.
func (m Mode) Armed() bool {
	switch m {
	case ModeArmedHome, ModeArmedAway, ModeArmedNight, ModeArmedVacation, ModeArmedCustomBypass:
		return true
	}
	return false
}

// HasCountdown reports whether a countdown payload may accompany m.
// Countdowns exist only while arming (exit delay), pending (entry
// delay), or triggered.
func (m Mode) HasCountdown() bool {
	return m == ModeArming || m == ModePending || m == ModeTriggered
}

// Snapshot is the authoritative, controller-issued alarm state record.
// Immutable value: replaced wholesale on every authoritative update.
type Snapshot struct {
	// Mode is the current alarm mode.
	Mode Mode `json:"mode" cbor:"mode"`

	// EnteredAt is when the controller entered this mode.
	EnteredAt time.Time `json:"entered_at" cbor:"entered_at"`

	// ExitAt is when the current delay phase ends, when the mode has
	// one. Nil outside delay phases.
	ExitAt *time.Time `json:"exit_at,omitempty" cbor:"exit_at,omitempty"`
}

// CountdownCategory distinguishes the three countdown kinds.
type CountdownCategory string

const (
	// CountdownEntry is the grace period after an entry sensor opens,
	// before the alarm fires.
	CountdownEntry CountdownCategory = "entry"

	// CountdownExit is the grace period after an arm command, before
	// the armed mode takes full effect.
	CountdownExit CountdownCategory = "exit"

	// CountdownTrigger is the siren/trigger duration.
	CountdownTrigger CountdownCategory = "trigger"
)

// Countdown is a server-reported countdown. It accompanies a Snapshot
// only while the mode has one (see Mode.HasCountdown); Remaining never
// exceeds Total.
type Countdown struct {
	Category  CountdownCategory `json:"category" cbor:"category"`
	Remaining int               `json:"remaining_seconds" cbor:"remaining_seconds"`
	Total     int               `json:"total_seconds" cbor:"total_seconds"`
}

// SensorState is the reported state of a gating sensor.
type SensorState string

const (
	SensorOpen    SensorState = "open"
	SensorClosed  SensorState = "closed"
	SensorUnknown SensorState = "unknown"
)

// Sensor is one entry of the controller's sensor inventory.
type Sensor struct {
	// EntityID identifies the sensor. Inventory entries with an empty
	// EntityID are placeholder rows and never gate arming.
	EntityID string `json:"entity_id" cbor:"entity_id"`

	// Active is whether the sensor is enabled for the alarm.
	Active bool `json:"active" cbor:"active"`

	// State is the current reported state.
	State SensorState `json:"state" cbor:"state"`

	// UsedInRules is whether any automation rule references this
	// sensor. Sensors outside the rule set never gate arming,
	// whatever their state.
	UsedInRules bool `json:"used_in_rules" cbor:"used_in_rules"`
}

// SensorBehavior is the arming policy for problematic sensors.
type SensorBehavior struct {
	// ForceArmEnabled permits arming despite open or unknown sensors.
	// The blocking sensors are still reported, only advisory.
	ForceArmEnabled bool `json:"force_arm_enabled" cbor:"force_arm_enabled"`
}

// Settings is the subset of the controller's settings profile the
// runtime consumes.
type Settings struct {
	// CodeArmRequired is whether arming requires a credential. Nil
	// (settings unavailable) fails safe toward requiring one.
	CodeArmRequired *bool `json:"code_arm_required" cbor:"code_arm_required"`

	// AvailableArmingStates lists the arm targets the controller
	// offers. Empty falls back to DefaultArmingStates.
	AvailableArmingStates []Mode `json:"available_arming_states" cbor:"available_arming_states"`

	// SensorBehavior is the problematic-sensor arming policy.
	SensorBehavior SensorBehavior `json:"sensor_behavior" cbor:"sensor_behavior"`
}
