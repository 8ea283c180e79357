// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// vigil-monitor is a long-running watcher for an alarm controller. It
// starts a session, logs every projection change, countdown tick, and
// connection status transition as structured records, and keeps
// running until interrupted.
//
// With --once it prints the current state as JSON and exits, which is
// handy for scripting and health checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vigil-home/vigil/alarm"
	"github.com/vigil-home/vigil/channel"
	"github.com/vigil-home/vigil/controller"
	"github.com/vigil-home/vigil/lib/config"
	"github.com/vigil-home/vigil/lib/version"
	"github.com/vigil-home/vigil/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		once        bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("vigil-monitor", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to vigil.yaml (default: $VIGIL_CONFIG)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&once, "once", false, "print the current state as JSON and exit")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if showVersion {
		version.Print("vigil-monitor")
		return nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	token, err := cfg.Token()
	if err != nil {
		return err
	}

	runtime := session.New(session.Config{
		Controller: controller.NewClient(controller.ClientConfig{
			BaseURL: cfg.Controller.URL,
			Token:   token,
			Logger:  logger,
		}),
		Channel: channel.New(channel.Config{
			Address:           cfg.Push.Address,
			BaseDelay:         cfg.Push.ReconnectBaseDelay.Std(),
			MaxDelay:          cfg.Push.ReconnectMaxDelay.Std(),
			MaxAttempts:       cfg.Push.ReconnectMaxAttempts,
			HeartbeatInterval: cfg.Push.HeartbeatInterval.Std(),
			Logger:            logger,
		}),
		Logger: logger,
	})
	defer runtime.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runtime.Start(ctx); err != nil {
		return err
	}

	if once {
		return printState(runtime)
	}

	runtime.OnChange(func(flags alarm.Flags) {
		snapshot := runtime.Snapshot()
		logger.Info("alarm state changed",
			"mode", snapshot.Mode,
			"can_arm", flags.CanArm,
			"open_sensors", flags.OpenSensors,
			"unknown_sensors", flags.UnknownSensors,
		)
	})
	runtime.OnCountdownTick(func(category alarm.CountdownCategory, remaining int) {
		logger.Info("countdown tick", "category", category, "remaining", remaining)
	})
	runtime.OnCountdownDone(func(category alarm.CountdownCategory) {
		logger.Info("countdown complete", "category", category)
	})
	runtime.OnConnectionStatus(func(status channel.Status) {
		logger.Info("push channel status", "status", status)
	})

	logger.Info("monitoring alarm controller",
		"api", cfg.Controller.URL,
		"push", cfg.Push.Address,
		"mode", runtime.Snapshot().Mode,
	)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// loadConfig resolves the config path: the flag wins, then
// VIGIL_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// printState writes the current session view to stdout as one JSON
// document.
func printState(runtime *session.Session) error {
	category, remaining, running := runtime.Countdown()
	view := struct {
		Snapshot  alarm.Snapshot          `json:"snapshot"`
		Flags     alarm.Flags             `json:"flags"`
		Category  alarm.CountdownCategory `json:"countdown_category,omitempty"`
		Remaining int                     `json:"countdown_remaining,omitempty"`
	}{
		Snapshot: runtime.Snapshot(),
		Flags:    runtime.Flags(),
	}
	if running {
		view.Category = category
		view.Remaining = remaining
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}
