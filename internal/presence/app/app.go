//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presenceapp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v2/clients/logger"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/harborwatch/ble-gate-presence-service/internal/mqtt"
	"github.com/harborwatch/ble-gate-presence-service/internal/presence"
)

const (
	serviceKey = "ble-gate-presence"

	cacheFolder     = "cache"
	beaconCacheFile = "beacons.json"
	folderPerm      = 0755 // folders require the execute flag in order to create new files
	filePerm        = 0644

	readingChSz     = 100
	httpIdleTimeout = 30 * time.Second
)

// PresenceApp wires the presence engine to the outside world: readings in over MQTT,
// state out over HTTP, escalation notices and events back out over MQTT, and a JSON
// snapshot cache across restarts.
//
// All beacon state lives inside taskLoop's goroutine; the HTTP handlers talk to it over
// request channels so API callers get a race-free view without locks on the registry.
type PresenceApp struct {
	lc     logger.LoggingClient
	config Config
	broker mqtt.Client
	router *mux.Router

	readings       chan presence.Reading
	snapshotReqs   chan snapshotDest
	beaconReqs     chan beaconQuery
	escalationReqs chan escalationQuery
}

// NewPresenceApp creates an app around an already-connected broker client. The broker is
// injected so tests can substitute a fake.
func NewPresenceApp(lc logger.LoggingClient, cfg Config, broker mqtt.Client) *PresenceApp {
	return &PresenceApp{
		lc:             lc,
		config:         cfg,
		broker:         broker,
		router:         mux.NewRouter(),
		readings:       make(chan presence.Reading, readingChSz),
		snapshotReqs:   make(chan snapshotDest),
		beaconReqs:     make(chan beaconQuery),
		escalationReqs: make(chan escalationQuery),
	}
}

// Initialize validates the configuration, registers the HTTP routes and subscribes to
// the readings topic. A configuration that breaks the engine invariants (hysteresis,
// windows, tiers) refuses to start.
func (app *PresenceApp) Initialize() error {
	if err := app.config.AppSettings.Validate(); err != nil {
		return errors.Wrap(err, "invalid application settings")
	}

	app.addRoutes()

	err := app.broker.SubscribeReadings(app.config.ReadingsTopic, func(r presence.Reading) {
		select {
		case app.readings <- r:
		default:
			// a full channel means the engine is behind; dropping the oldest-unread
			// sample is how the filters expect gaps to appear
			app.lc.Warn("Reading channel full, dropping sample.", "beacon", r.BeaconID)
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to readings")
	}

	return nil
}

// RunUntilCancelled starts the HTTP server and the task loop, then blocks until the
// process receives SIGINT/SIGTERM. Shutdown persists the snapshot before returning.
func (app *PresenceApp) RunUntilCancelled() error {
	if err := os.MkdirAll(cacheFolder, folderPerm); err != nil {
		app.lc.Error("Failed to create cache directory.", "directory", cacheFolder, "error", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.taskLoop(ctx)
		app.lc.Info("Task loop has exited.")
	}()

	server := &http.Server{
		Addr:        app.config.ListenAddress,
		Handler:     app.router,
		IdleTimeout: httpIdleTimeout,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.lc.Info("Starting HTTP server.", "address", app.config.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.lc.Error("HTTP server failed.", "error", err.Error())
			cancel()
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-signals:
		app.lc.Info("Received signal from OS.", "signal", s.String())
	case <-ctx.Done():
	}

	cancel() // signal the taskLoop to finish

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.lc.Warn("HTTP server shutdown error.", "error", err.Error())
	}

	wg.Wait()

	if err := app.broker.Close(); err != nil {
		app.lc.Warn("Broker disconnect error.", "error", err.Error())
	}

	app.lc.Info("Exiting.")
	return nil
}
