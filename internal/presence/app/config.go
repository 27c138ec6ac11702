//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presenceapp

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/harborwatch/ble-gate-presence-service/internal/presence"
)

// Config is the full service configuration: process-level settings plus the presence
// engine settings. Loaded once from a JSON file at startup; fields absent from the file
// keep their defaults.
type Config struct {
	LogLevel      string `json:"log_level"`
	ListenAddress string `json:"listen_address"`

	Broker          string `json:"broker"`
	ClientID        string `json:"client_id"`
	ReadingsTopic   string `json:"readings_topic"`
	EventsTopic     string `json:"events_topic"`
	EscalationTopic string `json:"escalation_topic"`

	AppSettings presence.ApplicationSettings `json:"app_settings"`

	// CalibrationBias is the per-scanner bias map. It may be set inline in the config
	// file or attached from a separate calibration file before the app starts.
	CalibrationBias map[string]float64 `json:"calibration"`
}

// Calibration returns the bias map, never nil.
func (cfg Config) Calibration() map[string]float64 {
	if cfg.CalibrationBias == nil {
		return map[string]float64{}
	}
	return cfg.CalibrationBias
}

// NewConfig returns the default service configuration.
func NewConfig() Config {
	return Config{
		LogLevel:      "INFO",
		ListenAddress: ":59720",

		Broker:          "tcp://localhost:1883",
		ClientID:        serviceKey,
		ReadingsTopic:   "harborwatch/gate/readings",
		EventsTopic:     "harborwatch/gate/events",
		EscalationTopic: "harborwatch/gate/escalations",

		AppSettings: presence.NewServiceConfig().AppSettings,
	}
}

// LoadConfig reads the service configuration file, overlaying it onto the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config file %s", path)
	}

	return cfg, nil
}

// LoadCalibration reads the per-scanner bias map produced by the external calibration
// tooling. A missing path yields an empty map: every scanner then defaults to 0 dB bias.
func LoadCalibration(path string) (map[string]float64, error) {
	if path == "" {
		return map[string]float64{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read calibration file %s", path)
	}

	calibration := map[string]float64{}
	if err := json.Unmarshal(data, &calibration); err != nil {
		return nil, errors.Wrapf(err, "failed to parse calibration file %s", path)
	}

	return calibration, nil
}
