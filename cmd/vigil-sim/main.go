// Copyright 2026 The Vigil Authors
// SPDX-License-Identifier: Apache-2.0

// vigil-sim is a simulated alarm controller for development and
// testing. It serves the controller HTTP API, accepts push channel
// connections, and runs a real mode state machine with exit, entry,
// and trigger phases.
//
// Beyond the standard API it exposes two simulation endpoints:
//
//	POST /api/v1/sim/trip    — open an entry sensor while armed
//	POST /api/v1/sim/sensor  — set a sensor's reported state
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/vigil-home/vigil/alarm"
	"github.com/vigil-home/vigil/controller"
	"github.com/vigil-home/vigil/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		apiAddress      string
		pushAddress     string
		code            string
		exitDelay       int
		entryDelay      int
		triggerDuration int
		forceArm        bool
		logLevel        string
		showVersion     bool
	)

	flagSet := pflag.NewFlagSet("vigil-sim", pflag.ContinueOnError)
	flagSet.StringVar(&apiAddress, "api-addr", ":8980", "HTTP API listen address")
	flagSet.StringVar(&pushAddress, "push-addr", ":8981", "push channel listen address")
	flagSet.StringVar(&code, "code", "", "arm/disarm credential (empty: no code required)")
	flagSet.IntVar(&exitDelay, "exit-delay", 45, "exit delay in seconds")
	flagSet.IntVar(&entryDelay, "entry-delay", 30, "entry delay in seconds")
	flagSet.IntVar(&triggerDuration, "trigger-duration", 120, "siren duration in seconds")
	flagSet.BoolVar(&forceArm, "force-arm", false, "permit arming despite open sensors")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if showVersion {
		version.Print("vigil-sim")
		return nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	sim := newSimulator(simulatorConfig{
		logger:          logger,
		code:            code,
		exitDelay:       exitDelay,
		entryDelay:      entryDelay,
		triggerDuration: triggerDuration,
		forceArmEnabled: forceArm,
	})

	pushListener, err := net.Listen("tcp", pushAddress)
	if err != nil {
		return fmt.Errorf("listening on push address %s: %w", pushAddress, err)
	}
	go sim.servePush(pushListener)

	server := &http.Server{
		Addr:    apiAddress,
		Handler: apiHandler(sim),
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info("simulated controller running",
		"api", apiAddress,
		"push", pushAddress,
		"code_required", code != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-serverErr:
		pushListener.Close()
		return fmt.Errorf("API server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	pushListener.Close()
	sim.closeConns()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// apiHandler builds the controller HTTP API around the simulator.
func apiHandler(sim *simulator) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/alarm/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sim.document())
	})
	mux.HandleFunc("GET /api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"settings": sim.settings()})
	})
	mux.HandleFunc("GET /api/v1/sensors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"sensors": sim.sensorInventory()})
	})
	mux.HandleFunc("POST /api/v1/alarm/arm", func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			RequestID string     `json:"request_id"`
			Target    alarm.Mode `json:"target"`
			Code      string     `json:"code"`
			Force     bool       `json:"force"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, &apiError{
				status:  http.StatusBadRequest,
				code:    controller.CodeInternal,
				message: "undecodable request body",
			})
			return
		}
		document, rejection := sim.arm(request.Target, request.Code, request.Force)
		if rejection != nil {
			writeError(w, rejection)
			return
		}
		writeJSON(w, document)
	})
	mux.HandleFunc("POST /api/v1/alarm/disarm", func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			RequestID string `json:"request_id"`
			Code      string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, &apiError{
				status:  http.StatusBadRequest,
				code:    controller.CodeInternal,
				message: "undecodable request body",
			})
			return
		}
		document, rejection := sim.disarm(request.Code)
		if rejection != nil {
			writeError(w, rejection)
			return
		}
		writeJSON(w, document)
	})
	mux.HandleFunc("POST /api/v1/alarm/cancel", func(w http.ResponseWriter, r *http.Request) {
		document, rejection := sim.cancel()
		if rejection != nil {
			writeError(w, rejection)
			return
		}
		writeJSON(w, document)
	})
	mux.HandleFunc("POST /api/v1/sim/trip", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sim.trip())
	})
	mux.HandleFunc("POST /api/v1/sim/sensor", func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			EntityID string            `json:"entity_id"`
			State    alarm.SensorState `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.EntityID == "" {
			writeError(w, &apiError{
				status:  http.StatusBadRequest,
				code:    controller.CodeInternal,
				message: "undecodable request body",
			})
			return
		}
		if !sim.setSensor(request.EntityID, request.State) {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"sensors": sim.sensorInventory()})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, rejection *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rejection.status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    rejection.code,
		"message": rejection.message,
	})
}
