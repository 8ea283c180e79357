// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"errors"
	"fmt"
)

// Code is a controller-reported error code.
type Code string

const (
	// CodeInvalidCode means the supplied credential was rejected.
	CodeInvalidCode Code = "invalid_code"

	// CodeCodeRequired means the command needs a credential and none
	// was supplied.
	CodeCodeRequired Code = "code_required"

	// CodeInvalidArmTarget means the requested arm target is not one
	// of the controller's available arming states.
	CodeInvalidArmTarget Code = "invalid_arm_target"

	// CodeNotArming means cancel was requested while no exit delay was
	// running.
	CodeNotArming Code = "not_arming"

	// CodeUnavailable means the controller could not serve the request
	// right now.
	CodeUnavailable Code = "unavailable"

	// CodeInternal means the controller failed internally.
	CodeInternal Code = "internal"
)

// Error is a failure reported by the controller itself, as opposed to
// a transport failure reaching it.
type Error struct {
	// Code is the controller's machine-readable error code.
	Code Code

	// Message is the controller's human-readable description.
	Message string

	// StatusCode is the HTTP status the error arrived with.
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("controller: %s (%s)", e.Message, e.Code)
}

// AsError unwraps err to a controller *Error if one is in the chain.
func AsError(err error) (*Error, bool) {
	var controllerErr *Error
	if errors.As(err, &controllerErr) {
		return controllerErr, true
	}
	return nil, false
}

// IsValidation reports whether err is a controller rejection of the
// caller's input (bad or missing credential). The command was refused;
// state did not change.
func IsValidation(err error) bool {
	controllerErr, ok := AsError(err)
	if !ok {
		return false
	}
	switch controllerErr.Code {
	case CodeInvalidCode, CodeCodeRequired:
		return true
	}
	return false
}

// IsPolicy reports whether err is a controller policy refusal: the
// input was well-formed but the command is not allowed in the current
// state.
func IsPolicy(err error) bool {
	controllerErr, ok := AsError(err)
	if !ok {
		return false
	}
	switch controllerErr.Code {
	case CodeInvalidArmTarget, CodeNotArming:
		return true
	}
	return false
}

// IsServer reports whether err is a controller-side failure, including
// codes this client does not know.
func IsServer(err error) bool {
	if _, ok := AsError(err); !ok {
		return false
	}
	return !IsValidation(err) && !IsPolicy(err)
}

// IsTransport reports whether err is a failure to reach the controller
// at all: no *Error is in the chain, so no controller ever answered.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	_, ok := AsError(err)
	return !ok
}
