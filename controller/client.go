// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-home/vigil/alarm"
)

// maxErrorBodyLength bounds how much of an error response body is read
// when it fails to parse as an error document.
const maxErrorBodyLength = 4 << 10

// ClientConfig configures a Client. BaseURL is required.
type ClientConfig struct {
	// BaseURL is the controller's API root, e.g.
	// "http://alarm.local:8123".
	BaseURL string

	// Token is the bearer token for API authentication. Empty means
	// unauthenticated requests.
	Token string

	// HTTPClient is the underlying HTTP client. Nil means a client
	// with a 15-second timeout.
	HTTPClient *http.Client

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Client talks to the controller's request/response API. Safe for
// concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given controller.
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// State fetches the current authoritative alarm state.
func (c *Client) State(ctx context.Context) (StateDocument, error) {
	var document StateDocument
	if err := c.do(ctx, http.MethodGet, "/api/v1/alarm/state", nil, &document); err != nil {
		return StateDocument{}, err
	}
	return document, nil
}

// Settings fetches the controller's settings profile.
func (c *Client) Settings(ctx context.Context) (alarm.Settings, error) {
	var document settingsDocument
	if err := c.do(ctx, http.MethodGet, "/api/v1/settings", nil, &document); err != nil {
		return alarm.Settings{}, err
	}
	return document.Settings, nil
}

// Sensors fetches the controller's sensor inventory.
func (c *Client) Sensors(ctx context.Context) ([]alarm.Sensor, error) {
	var document sensorsDocument
	if err := c.do(ctx, http.MethodGet, "/api/v1/sensors", nil, &document); err != nil {
		return nil, err
	}
	return document.Sensors, nil
}

// Arm requests a transition to the given armed mode. On success the
// returned document reflects the controller's new state, typically
// arming with an exit countdown.
func (c *Client) Arm(ctx context.Context, command ArmCommand) (StateDocument, error) {
	request := armRequest{RequestID: uuid.NewString(), ArmCommand: command}
	var document StateDocument
	if err := c.do(ctx, http.MethodPost, "/api/v1/alarm/arm", request, &document); err != nil {
		return StateDocument{}, fmt.Errorf("arming to %s: %w", command.Target, err)
	}
	return document, nil
}

// Disarm requests a transition to disarmed.
func (c *Client) Disarm(ctx context.Context, code string) (StateDocument, error) {
	request := disarmRequest{RequestID: uuid.NewString(), Code: code}
	var document StateDocument
	if err := c.do(ctx, http.MethodPost, "/api/v1/alarm/disarm", request, &document); err != nil {
		return StateDocument{}, fmt.Errorf("disarming: %w", err)
	}
	return document, nil
}

// CancelArming aborts a running exit delay, returning to disarmed. The
// code is optional. The controller answers CodeNotArming when no exit
// delay is running.
func (c *Client) CancelArming(ctx context.Context, code string) (StateDocument, error) {
	request := cancelRequest{RequestID: uuid.NewString(), Code: code}
	var document StateDocument
	if err := c.do(ctx, http.MethodPost, "/api/v1/alarm/cancel", request, &document); err != nil {
		return StateDocument{}, fmt.Errorf("canceling arming: %w", err)
	}
	return document, nil
}

// do performs one API request: marshal the body, send with auth,
// decode the answer into result, and turn non-2xx answers into *Error.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return c.responseError(response)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// responseError converts a non-2xx response into a *Error, falling
// back to a status-derived code when the body is not an error
// document.
func (c *Client) responseError(response *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyLength))
	if err != nil {
		raw = nil
	}

	var document errorDocument
	if jsonErr := json.Unmarshal(raw, &document); jsonErr == nil && document.Code != "" {
		return &Error{
			Code:       document.Code,
			Message:    document.Message,
			StatusCode: response.StatusCode,
		}
	}

	code := CodeInternal
	if response.StatusCode == http.StatusServiceUnavailable {
		code = CodeUnavailable
	}
	message := strings.TrimSpace(string(raw))
	if message == "" {
		message = response.Status
	}
	c.logger.Debug("controller answered without error document",
		"status", response.StatusCode,
	)
	return &Error{Code: code, Message: message, StatusCode: response.StatusCode}
}
