// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package alarm

import "slices"

// DefaultArmingStates is the arm-target offer used when the settings
// profile does not name one. Never empty — the UI always has a valid
// offer.
var DefaultArmingStates = []Mode{
	ModeArmedHome,
	ModeArmedAway,
	ModeArmedNight,
	ModeArmedVacation,
}

// Flags is the derived projection of the authoritative state. Not
// persisted; recomputed on every input change.
type Flags struct {
	// Exactly one of these five is true for every valid Mode.
	IsDisarmed  bool
	IsArming    bool
	IsPending   bool
	IsTriggered bool
	IsArmed     bool

	// CodeRequiredForArm is whether an arm action needs a credential.
	CodeRequiredForArm bool

	// AvailableArmingStates is the arm-target offer. Never empty.
	AvailableArmingStates []Mode

	// OpenSensors and UnknownSensors are the blocking partitions from
	// the sensor gate, sorted by entity ID.
	OpenSensors    []string
	UnknownSensors []string

	// CanArm is whether an arm action is currently permitted.
	CanArm bool
}

// Project derives Flags from the authoritative snapshot, the settings
// profile, and the sensor inventory. Pure: no side effects, and the
// same inputs always produce an Equal result.
func Project(snapshot Snapshot, settings Settings, sensors []Sensor) Flags {
	flags := Flags{
		IsDisarmed:  snapshot.Mode == ModeDisarmed,
		IsArming:    snapshot.Mode == ModeArming,
		IsPending:   snapshot.Mode == ModePending,
		IsTriggered: snapshot.Mode == ModeTriggered,
		IsArmed:     snapshot.Mode.Armed(),

		// Fail safe: when the settings profile is unavailable, assume
		// a credential is required.
		CodeRequiredForArm: settings.CodeArmRequired == nil || *settings.CodeArmRequired,

		OpenSensors:    OpenSensors(sensors),
		UnknownSensors: UnknownSensors(sensors),
		CanArm:         CanArm(sensors, settings),
	}

	if len(settings.AvailableArmingStates) > 0 {
		flags.AvailableArmingStates = append([]Mode(nil), settings.AvailableArmingStates...)
	} else {
		flags.AvailableArmingStates = append([]Mode(nil), DefaultArmingStates...)
	}

	return flags
}

// Equal reports whether two Flags values are identical. Used for
// change detection by subscribers that memoize on the projection.
func (f Flags) Equal(other Flags) bool {
	if f.IsDisarmed != other.IsDisarmed ||
		f.IsArming != other.IsArming ||
		f.IsPending != other.IsPending ||
		f.IsTriggered != other.IsTriggered ||
		f.IsArmed != other.IsArmed ||
		f.CodeRequiredForArm != other.CodeRequiredForArm ||
		f.CanArm != other.CanArm {
		return false
	}
	return slices.Equal(f.AvailableArmingStates, other.AvailableArmingStates) &&
		slices.Equal(f.OpenSensors, other.OpenSensors) &&
		slices.Equal(f.UnknownSensors, other.UnknownSensors)
}
