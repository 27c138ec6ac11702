//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presenceapp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "tcp://localhost:1883", cfg.Broker)
	assert.NoError(t, cfg.AppSettings.Validate())
}

func TestLoadConfigOverlay(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"log_level": "DEBUG",
		"broker": "tcp://broker.local:1883",
		"app_settings": {
			"InnerHighDbm": -64,
			"InnerLowDbm": -72
		},
		"calibration": {"inner": 1.5}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "tcp://broker.local:1883", cfg.Broker)
	assert.InDelta(t, -64, cfg.AppSettings.InnerHighDbm, 1e-9)
	assert.InDelta(t, -72, cfg.AppSettings.InnerLowDbm, 1e-9)
	assert.InDelta(t, 1.5, cfg.Calibration()["inner"], 1e-9)

	// fields absent from the file keep their defaults
	assert.Equal(t, ":59720", cfg.ListenAddress)
	assert.Equal(t, 3, cfg.AppSettings.ConfirmCount)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeFile(t, "config.json", `{not json`)
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadCalibration(t *testing.T) {
	calibration, err := LoadCalibration("")
	require.NoError(t, err)
	assert.Empty(t, calibration)

	path := writeFile(t, "calibration.json", `{"inner": 2.5, "outer": -1.0}`)
	calibration, err = LoadCalibration(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, calibration["inner"], 1e-9)
	assert.InDelta(t, -1.0, calibration["outer"], 1e-9)

	_, err = LoadCalibration(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
