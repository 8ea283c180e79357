// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package alarm

import "sort"

// OpenSensors returns the entity IDs of sensors currently blocking
// arming because they are open: active, referenced by a rule, and
// reporting open. The result is sorted so the partition is independent
// of inventory order.
func OpenSensors(sensors []Sensor) []string {
	var blocking []string
	for _, sensor := range sensors {
		if sensor.UsedInRules && sensor.Active && sensor.State == SensorOpen {
			blocking = append(blocking, sensor.EntityID)
		}
	}
	sort.Strings(blocking)
	return blocking
}

// UnknownSensors returns the entity IDs of sensors that cannot be read:
// active, referenced by a rule, carrying an entity ID, and reporting
// unknown. Unknown sensors are reported alongside open ones but never
// hard-block arming on their own — an unreachable sensor is not
// evidence of an open door. The result is sorted.
func UnknownSensors(sensors []Sensor) []string {
	var unreadable []string
	for _, sensor := range sensors {
		if sensor.UsedInRules && sensor.Active && sensor.EntityID != "" && sensor.State == SensorUnknown {
			unreadable = append(unreadable, sensor.EntityID)
		}
	}
	sort.Strings(unreadable)
	return unreadable
}

// CanArm reports whether arming is currently permitted: either no open
// sensors block it, or the force-arm policy allows arming anyway.
func CanArm(sensors []Sensor, settings Settings) bool {
	return len(OpenSensors(sensors)) == 0 || settings.SensorBehavior.ForceArmEnabled
}
