//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"math"

	"github.com/pkg/errors"
)

// ApplicationSettings are the tuning knobs of the presence engine. Thresholds vary per
// deployment because antenna placement varies; Validate must pass before the service is
// allowed to start.
type ApplicationSettings struct {
	// InnerScannerID and OuterScannerID map raw reading scanner ids onto the two gate
	// roles. Readings from any other scanner id are rejected at the ingestion boundary.
	InnerScannerID string
	OuterScannerID string

	FilterMode             FilterMode
	MedianWindowSize       int
	SmoothingAlpha         float64
	AdaptiveVarianceWindow int
	ProcessNoise           float64
	MeasurementNoise       float64

	// Hysteresis threshold pairs (dBm); High must exceed Low on both scanners.
	InnerHighDbm float64
	InnerLowDbm  float64
	OuterHighDbm float64
	OuterLowDbm  float64

	VelocityThresholdDbps float64
	DeltaPositiveDb       float64
	DeltaNegativeDb       float64

	TrendSpanSeconds     float64
	WindowSeconds        float64
	ConfirmCount         int
	SamplePeriodSeconds  float64
	SampleTimeoutSeconds float64

	// ClosingHour/ClosingMinute define the daily shed closing time used as the
	// escalation baseline for beacons whose exit predates it.
	ClosingHour   int
	ClosingMinute int

	EscalationCheckIntervalSeconds uint
	AgeOutHours                    uint

	EscalationTiers []EscalationTier
}

// ServiceConfig is the full runtime configuration: engine settings plus the static
// per-scanner calibration bias map loaded once at startup.
type ServiceConfig struct {
	AppSettings ApplicationSettings
	// Calibration maps scanner id to a fixed bias (dB) correcting antenna/hardware
	// asymmetry between the two radios. Missing entries default to 0.
	Calibration map[string]float64
}

// NewServiceConfig returns the reference configuration with production defaults.
func NewServiceConfig() ServiceConfig {
	return ServiceConfig{
		AppSettings: ApplicationSettings{
			InnerScannerID: "inner",
			OuterScannerID: "outer",

			FilterMode:             FilterMedianEMA,
			MedianWindowSize:       5,
			SmoothingAlpha:         0.3,
			AdaptiveVarianceWindow: 10,
			ProcessNoise:           0.008,
			MeasurementNoise:       4.0,

			InnerHighDbm: -67,
			InnerLowDbm:  -75,
			OuterHighDbm: -67,
			OuterLowDbm:  -75,

			VelocityThresholdDbps: 3.0,
			DeltaPositiveDb:       6.0,
			DeltaNegativeDb:       -6.0,

			TrendSpanSeconds:     1.0,
			WindowSeconds:        2.0,
			ConfirmCount:         3,
			SamplePeriodSeconds:  0.2,
			SampleTimeoutSeconds: 5.0,

			ClosingHour:   18,
			ClosingMinute: 0,

			EscalationCheckIntervalSeconds: 60,
			AgeOutHours:                    336, // 2 weeks

			EscalationTiers: []EscalationTier{
				{DelayMinutes: 0, Channels: []string{"web"}},
				{DelayMinutes: 15, Channels: []string{"web", "push"}},
				{DelayMinutes: 30, Channels: []string{"web", "push", "email"}},
				{DelayMinutes: 60, Channels: []string{"web", "push", "email", "sms"}},
			},
		},
		Calibration: map[string]float64{},
	}
}

// BiasFor returns the calibration bias for a scanner, defaulting to 0 when the scanner
// has no calibration entry.
func (cfg ServiceConfig) BiasFor(scannerID string) float64 {
	return cfg.Calibration[scannerID]
}

// confirmationWindowSamples converts the confirmation window duration into a sample
// count at the configured step cadence.
func (as ApplicationSettings) confirmationWindowSamples() int {
	n := int(math.Round(as.WindowSeconds / as.SamplePeriodSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

// trendCapacitySamples sizes the trend window so it always covers the lookback span.
func (as ApplicationSettings) trendCapacitySamples() int {
	n := int(math.Round(as.TrendSpanSeconds/as.SamplePeriodSeconds)) + 2
	if n < 2 {
		n = 2
	}
	return n
}

func (as ApplicationSettings) sampleTimeoutMillis() int64 {
	return int64(as.SampleTimeoutSeconds * 1000)
}

// Validate refuses configurations that break the engine's invariants. A broken hysteresis
// pair in particular would re-introduce threshold flicker, so it is fatal at startup.
func (as ApplicationSettings) Validate() error {
	if as.InnerScannerID == "" || as.OuterScannerID == "" {
		return errors.New("both scanner ids must be configured")
	}
	if as.InnerScannerID == as.OuterScannerID {
		return errors.Errorf("inner and outer scanner ids must differ, both are %q", as.InnerScannerID)
	}

	switch as.FilterMode {
	case FilterMedianEMA, FilterAdaptive, FilterKalman:
	default:
		return errors.Errorf("unknown filter mode %q", as.FilterMode)
	}

	if as.MedianWindowSize < 3 || as.MedianWindowSize > 7 {
		return errors.Errorf("median window size must be within [3, 7], got %d", as.MedianWindowSize)
	}
	if as.SmoothingAlpha <= 0 || as.SmoothingAlpha > 1 {
		return errors.Errorf("smoothing alpha must be within (0, 1], got %v", as.SmoothingAlpha)
	}
	if as.AdaptiveVarianceWindow < 2 {
		return errors.Errorf("adaptive variance window must be at least 2, got %d", as.AdaptiveVarianceWindow)
	}
	if as.MeasurementNoise <= 0 || as.ProcessNoise <= 0 {
		return errors.New("kalman process and measurement noise must be positive")
	}

	if as.InnerHighDbm <= as.InnerLowDbm {
		return errors.Errorf("inner scanner hysteresis requires high > low, got high=%v low=%v",
			as.InnerHighDbm, as.InnerLowDbm)
	}
	if as.OuterHighDbm <= as.OuterLowDbm {
		return errors.Errorf("outer scanner hysteresis requires high > low, got high=%v low=%v",
			as.OuterHighDbm, as.OuterLowDbm)
	}

	if as.VelocityThresholdDbps <= 0 {
		return errors.Errorf("velocity threshold must be positive, got %v", as.VelocityThresholdDbps)
	}
	if as.DeltaPositiveDb <= 0 || as.DeltaNegativeDb >= 0 {
		return errors.New("delta thresholds must straddle zero (positive delta > 0, negative delta < 0)")
	}

	if as.TrendSpanSeconds <= 0 {
		return errors.Errorf("trend span must be positive, got %v", as.TrendSpanSeconds)
	}
	if as.WindowSeconds <= 0 || as.SamplePeriodSeconds <= 0 {
		return errors.New("confirmation window and sample period must be positive")
	}
	if as.ConfirmCount < 1 || as.ConfirmCount > as.confirmationWindowSamples() {
		return errors.Errorf("confirm count must be within [1, %d], got %d",
			as.confirmationWindowSamples(), as.ConfirmCount)
	}
	if as.SampleTimeoutSeconds <= 0 {
		return errors.Errorf("sample timeout must be positive, got %v", as.SampleTimeoutSeconds)
	}

	if as.ClosingHour < 0 || as.ClosingHour > 23 || as.ClosingMinute < 0 || as.ClosingMinute > 59 {
		return errors.Errorf("invalid closing time %02d:%02d", as.ClosingHour, as.ClosingMinute)
	}
	if as.EscalationCheckIntervalSeconds == 0 {
		return errors.New("escalation check interval must be at least 1 second")
	}
	if as.AgeOutHours == 0 {
		return errors.New("age out hours must be at least 1")
	}

	if len(as.EscalationTiers) == 0 {
		return errors.New("at least one escalation tier must be configured")
	}
	for i, tier := range as.EscalationTiers {
		if tier.DelayMinutes < 0 {
			return errors.Errorf("escalation tier %d has negative delay", i)
		}
		if i > 0 && tier.DelayMinutes <= as.EscalationTiers[i-1].DelayMinutes {
			return errors.Errorf("escalation tiers must have strictly increasing delays, tier %d does not", i)
		}
		if len(tier.Channels) == 0 {
			return errors.Errorf("escalation tier %d has no channels", i)
		}
	}

	return nil
}
