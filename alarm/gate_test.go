// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package alarm

import (
	"slices"
	"testing"
)

func gateInventory() []Sensor {
	return []Sensor{
		{EntityID: "binary_sensor.front_door", Active: true, State: SensorOpen, UsedInRules: true},
		{EntityID: "binary_sensor.back_door", Active: true, State: SensorClosed, UsedInRules: true},
		{EntityID: "binary_sensor.garage", Active: true, State: SensorUnknown, UsedInRules: true},
		// Open but not referenced by any rule: never gates.
		{EntityID: "binary_sensor.shed", Active: true, State: SensorOpen, UsedInRules: false},
		// Open but disabled: never gates.
		{EntityID: "binary_sensor.attic", Active: false, State: SensorOpen, UsedInRules: true},
		// Placeholder row with no entity ID: never reported unknown.
		{EntityID: "", Active: true, State: SensorUnknown, UsedInRules: true},
	}
}

func TestOpenSensorsFiltering(t *testing.T) {
	t.Parallel()

	open := OpenSensors(gateInventory())
	if !slices.Equal(open, []string{"binary_sensor.front_door"}) {
		t.Errorf("OpenSensors = %v, want [binary_sensor.front_door]", open)
	}
}

func TestUnknownSensorsFiltering(t *testing.T) {
	t.Parallel()

	unknown := UnknownSensors(gateInventory())
	if !slices.Equal(unknown, []string{"binary_sensor.garage"}) {
		t.Errorf("UnknownSensors = %v, want [binary_sensor.garage]", unknown)
	}
}

func TestGateOrderIndependent(t *testing.T) {
	t.Parallel()

	inventory := gateInventory()
	reversed := make([]Sensor, len(inventory))
	for i, sensor := range inventory {
		reversed[len(inventory)-1-i] = sensor
	}

	if !slices.Equal(OpenSensors(inventory), OpenSensors(reversed)) {
		t.Error("OpenSensors depends on inventory order")
	}
	if !slices.Equal(UnknownSensors(inventory), UnknownSensors(reversed)) {
		t.Error("UnknownSensors depends on inventory order")
	}
	if CanArm(inventory, Settings{}) != CanArm(reversed, Settings{}) {
		t.Error("CanArm depends on inventory order")
	}
}

func TestCanArmNoOpenSensors(t *testing.T) {
	t.Parallel()

	closed := []Sensor{
		{EntityID: "binary_sensor.back_door", Active: true, State: SensorClosed, UsedInRules: true},
		{EntityID: "binary_sensor.garage", Active: true, State: SensorUnknown, UsedInRules: true},
	}

	// No open sensors: arming permitted regardless of force-arm.
	if !CanArm(closed, Settings{}) {
		t.Error("CanArm false with no open sensors and force-arm disabled")
	}
	if !CanArm(closed, Settings{SensorBehavior: SensorBehavior{ForceArmEnabled: true}}) {
		t.Error("CanArm false with no open sensors and force-arm enabled")
	}
}

func TestCanArmOpenSensorsNeedForceArm(t *testing.T) {
	t.Parallel()

	inventory := gateInventory()

	if CanArm(inventory, Settings{}) {
		t.Error("CanArm true with an open sensor and force-arm disabled")
	}
	if !CanArm(inventory, Settings{SensorBehavior: SensorBehavior{ForceArmEnabled: true}}) {
		t.Error("CanArm false with force-arm enabled")
	}
}

func TestModeValid(t *testing.T) {
	t.Parallel()

	for _, mode := range Modes {
		if !mode.Valid() {
			t.Errorf("mode %s reported invalid", mode)
		}
	}
	if Mode("armed_banana").Valid() {
		t.Error("unknown mode reported valid")
	}
}
