//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

// FilterMode selects which Conditioner implementation a deployment runs.
type FilterMode string

const (
	// FilterMedianEMA is the default conditioning pipeline: a sliding median to knock out
	// single-sample multipath spikes, feeding an exponential moving average.
	FilterMedianEMA FilterMode = "median-ema"
	// FilterAdaptive is the median+EMA pipeline with the smoothing factor re-selected each
	// update from the variance of the recent raw samples.
	FilterAdaptive FilterMode = "adaptive"
	// FilterKalman is a scalar recursive estimator with fixed process and measurement noise.
	FilterKalman FilterMode = "kalman"
)

// Conditioner turns a stream of raw RSSI samples for one (scanner, beacon) pair into a
// stable estimate. Implementations are owned by exactly one pair and are not safe for
// concurrent use; a missing sample is simply "no update".
type Conditioner interface {
	// Update pushes a raw dBm sample and returns the new conditioned value.
	Update(raw float64) float64
	// Reset clears all internal state, used when a beacon is deliberately forgotten.
	Reset()
}

// MedianEMAFilter chains a sliding-window median into an exponential moving average.
// The order matters: the median removes spikes that would otherwise corrupt the EMA's
// exponential memory. A fixed per-scanner calibration bias is added after filtering.
type MedianEMAFilter struct {
	window   *CircularBuffer
	alpha    float64
	biasDbm  float64
	smoothed float64
	primed   bool
}

// NewMedianEMAFilter creates a combined median+EMA conditioner.
// alpha must be in (0,1]; lower values smooth harder and react slower.
func NewMedianEMAFilter(windowSize int, alpha, biasDbm float64) *MedianEMAFilter {
	return &MedianEMAFilter{
		window:  NewCircularBuffer(windowSize),
		alpha:   alpha,
		biasDbm: biasDbm,
	}
}

func (f *MedianEMAFilter) Update(raw float64) float64 {
	f.window.AddValue(raw)
	med := f.window.Median()

	if !f.primed {
		f.smoothed = med
		f.primed = true
	} else {
		f.smoothed = f.alpha*med + (1-f.alpha)*f.smoothed
	}

	return f.smoothed + f.biasDbm
}

func (f *MedianEMAFilter) Reset() {
	f.window.Reset()
	f.smoothed = 0
	f.primed = false
}

// AdaptiveFilter wraps a MedianEMAFilter and re-selects alpha on every update based on
// the sample variance of the last N raw values: a stable signal reacts fast, a noisy
// signal smooths harder.
type AdaptiveFilter struct {
	raw   *CircularBuffer
	inner *MedianEMAFilter
}

// NewAdaptiveFilter creates an adaptive conditioner. varianceWindow is the number of raw
// samples the variance estimate looks at.
func NewAdaptiveFilter(windowSize, varianceWindow int, biasDbm float64) *AdaptiveFilter {
	return &AdaptiveFilter{
		raw:   NewCircularBuffer(varianceWindow),
		inner: NewMedianEMAFilter(windowSize, alphaForVariance(0), biasDbm),
	}
}

func (f *AdaptiveFilter) Update(raw float64) float64 {
	f.raw.AddValue(raw)
	f.inner.alpha = alphaForVariance(f.raw.Variance())
	return f.inner.Update(raw)
}

func (f *AdaptiveFilter) Reset() {
	f.raw.Reset()
	f.inner.Reset()
}

// alphaForVariance maps the recent raw-sample variance onto a smoothing factor band.
func alphaForVariance(variance float64) float64 {
	switch {
	case variance > 20:
		return 0.2
	case variance > 10:
		return 0.3
	case variance > 5:
		return 0.4
	default:
		return 0.5
	}
}

// KalmanLiteFilter is a simplified scalar Bayesian estimator with fixed process variance Q
// and measurement variance R. The first sample initializes the estimate directly and the
// error variance starts at 1.0.
type KalmanLiteFilter struct {
	q       float64
	r       float64
	biasDbm float64

	estimate float64
	errCov   float64
	primed   bool
}

// NewKalmanLiteFilter creates a Kalman-lite conditioner.
// Higher q tracks real change more aggressively; higher r trusts measurements less.
func NewKalmanLiteFilter(q, r, biasDbm float64) *KalmanLiteFilter {
	return &KalmanLiteFilter{
		q:       q,
		r:       r,
		biasDbm: biasDbm,
	}
}

func (f *KalmanLiteFilter) Update(raw float64) float64 {
	if !f.primed {
		f.estimate = raw
		f.errCov = 1.0
		f.primed = true
		return f.estimate + f.biasDbm
	}

	predictedErr := f.errCov + f.q
	gain := predictedErr / (predictedErr + f.r)
	f.estimate += gain * (raw - f.estimate)
	f.errCov = (1 - gain) * predictedErr

	return f.estimate + f.biasDbm
}

func (f *KalmanLiteFilter) Reset() {
	f.estimate = 0
	f.errCov = 0
	f.primed = false
}

// NewConditioner builds the Conditioner selected by the settings for a scanner with the
// given calibration bias. Settings are assumed to have passed Validate.
func NewConditioner(settings ApplicationSettings, biasDbm float64) Conditioner {
	switch settings.FilterMode {
	case FilterAdaptive:
		return NewAdaptiveFilter(settings.MedianWindowSize, settings.AdaptiveVarianceWindow, biasDbm)
	case FilterKalman:
		return NewKalmanLiteFilter(settings.ProcessNoise, settings.MeasurementNoise, biasDbm)
	default:
		return NewMedianEMAFilter(settings.MedianWindowSize, settings.SmoothingAlpha, biasDbm)
	}
}
