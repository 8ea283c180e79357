// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import "github.com/vigil-home/vigil/alarm"

// StateDocument is the controller's authoritative alarm state answer.
// Every command returns one, and the state read returns one, so the
// caller always ends up holding a complete replacement snapshot.
type StateDocument struct {
	Snapshot  alarm.Snapshot   `json:"snapshot"`
	Countdown *alarm.Countdown `json:"countdown,omitempty"`
}

// ArmCommand is the request body for an arm command.
type ArmCommand struct {
	// Target is the armed mode to enter.
	Target alarm.Mode `json:"target"`

	// Code is the arming credential. May be empty when the controller
	// does not require one.
	Code string `json:"code,omitempty"`

	// Force requests arming despite open or unknown sensors. Honored
	// only when the controller's sensor behavior permits it.
	Force bool `json:"force,omitempty"`
}

// armRequest is the wire form of an arm command.
type armRequest struct {
	RequestID string `json:"request_id"`
	ArmCommand
}

// disarmRequest is the wire form of a disarm command.
type disarmRequest struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code,omitempty"`
}

// cancelRequest is the wire form of a cancel-arming command. The code
// is optional; controllers that gate cancellation validate it.
type cancelRequest struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code,omitempty"`
}

// errorDocument is the controller's error response body.
type errorDocument struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// settingsDocument wraps the settings read response.
type settingsDocument struct {
	Settings alarm.Settings `json:"settings"`
}

// sensorsDocument wraps the sensor inventory response.
type sensorsDocument struct {
	Sensors []alarm.Sensor `json:"sensors"`
}
