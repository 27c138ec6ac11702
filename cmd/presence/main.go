//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"

	"github.com/edgexfoundry/go-mod-core-contracts/v2/clients/logger"

	"github.com/harborwatch/ble-gate-presence-service/internal/logutil"
	"github.com/harborwatch/ble-gate-presence-service/internal/mqtt"
	presenceapp "github.com/harborwatch/ble-gate-presence-service/internal/presence/app"
)

const serviceKey = "ble-gate-presence"

func main() {
	var (
		configPath      = flag.String("config", "", "path to the service config JSON file")
		calibrationPath = flag.String("calibration", "", "path to the per-scanner bias calibration JSON file")
		broker          = flag.String("broker", "", "MQTT broker URL, overrides the config file")
		listen          = flag.String("listen", "", "HTTP listen address, overrides the config file")
	)
	flag.Parse()

	cfg, err := presenceapp.LoadConfig(*configPath)
	lgr := logutil.LogWrap{LoggingClient: logger.NewClient(serviceKey, cfg.LogLevel)}
	lgr.ExitIfErr(err, "Failed to load config.", logutil.KeyValue{Key: "path", Val: *configPath})

	if *broker != "" {
		cfg.Broker = *broker
	}
	if *listen != "" {
		cfg.ListenAddress = *listen
	}

	if *calibrationPath != "" {
		calibration, err := presenceapp.LoadCalibration(*calibrationPath)
		lgr.ExitIfErr(err, "Failed to load calibration.",
			logutil.KeyValue{Key: "path", Val: *calibrationPath})
		cfg.CalibrationBias = calibration
	}

	lgr.Info("Starting.", "broker", cfg.Broker, "listen", cfg.ListenAddress)

	client, err := mqtt.NewRealClient(lgr, cfg.Broker, cfg.ClientID)
	lgr.ExitIfErr(err, "Failed to connect to MQTT broker.",
		logutil.KeyValue{Key: "broker", Val: cfg.Broker})

	app := presenceapp.NewPresenceApp(lgr, cfg, client)
	lgr.ExitIfErr(app.Initialize(), "Failed to initialize application.")
	lgr.ExitIfErr(app.RunUntilCancelled(), "Application exited with error.")
}
