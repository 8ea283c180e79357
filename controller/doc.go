// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller is the request/response client for the alarm
// controller's HTTP API. It covers the state, settings, and sensor
// reads plus the arm, disarm, and cancel commands; the live event feed
// is the channel package's job.
//
// Controller-reported failures become *Error values carrying the
// controller's error code, so callers can distinguish a rejected
// credential from an unreachable controller with errors.As or the
// IsValidation/IsPolicy/IsServer/IsTransport classifiers.
package controller
