// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Vigil binaries.
//
// Configuration is loaded from a single YAML file specified by:
//   - VIGIL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery, and environment
// variables do not override file values. This keeps configuration
// deterministic and auditable with no hidden overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings in
// time.ParseDuration syntax ("30s", "1m30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for a Vigil client.
type Config struct {
	// Controller configures the request/response API connection.
	Controller ControllerConfig `yaml:"controller"`

	// Push configures the push channel.
	Push PushConfig `yaml:"push"`
}

// ControllerConfig configures the controller's HTTP API endpoint.
type ControllerConfig struct {
	// URL is the base URL of the controller API
	// (e.g., "http://alarm.local:8980").
	URL string `yaml:"url"`

	// TokenFile is the path to a file containing the API bearer
	// token. Empty means unauthenticated (development controllers).
	TokenFile string `yaml:"token_file"`
}

// PushConfig configures the push channel and its reconnect policy.
type PushConfig struct {
	// Address is the push channel endpoint in "host:port" form.
	Address string `yaml:"address"`

	// ReconnectBaseDelay is the first reconnect delay. Doubles on
	// every failed cycle up to ReconnectMaxDelay. Default: 1s.
	ReconnectBaseDelay Duration `yaml:"reconnect_base_delay"`

	// ReconnectMaxDelay caps the backoff delay. Default: 30s.
	ReconnectMaxDelay Duration `yaml:"reconnect_max_delay"`

	// ReconnectMaxAttempts caps consecutive failed cycles before
	// automatic reconnection stops. Default: 10.
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts"`

	// HeartbeatInterval is the liveness ping period while connected.
	// Default: 30s.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

// Default returns the default configuration. Endpoint fields have no
// defaults — the config file is required to name the controller.
func Default() *Config {
	return &Config{
		Push: PushConfig{
			ReconnectBaseDelay:   Duration(time.Second),
			ReconnectMaxDelay:    Duration(30 * time.Second),
			ReconnectMaxAttempts: 10,
			HeartbeatInterval:    Duration(30 * time.Second),
		},
	}
}

// Load loads configuration from the path named by the VIGIL_CONFIG
// environment variable.
func Load() (*Config, error) {
	path := os.Getenv("VIGIL_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("VIGIL_CONFIG environment variable not set; " +
			"set it to the path of your vigil.yaml config file, or use --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging the
// file over Default().
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Token reads the configured token file and returns its contents with
// surrounding whitespace trimmed. Returns "" when no token file is
// configured.
func (c *Config) Token() (string, error) {
	if c.Controller.TokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Controller.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return string(bytes.TrimSpace(data)), nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Controller.URL == "" {
		errs = append(errs, fmt.Errorf("controller.url is required"))
	}
	if c.Push.Address == "" {
		errs = append(errs, fmt.Errorf("push.address is required"))
	}
	if c.Push.ReconnectBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("push.reconnect_base_delay must be positive"))
	}
	if c.Push.ReconnectMaxDelay < c.Push.ReconnectBaseDelay {
		errs = append(errs, fmt.Errorf("push.reconnect_max_delay must be >= push.reconnect_base_delay"))
	}
	if c.Push.ReconnectMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("push.reconnect_max_attempts must be positive"))
	}
	if c.Push.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("push.heartbeat_interval must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
