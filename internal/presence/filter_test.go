//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedianEMAFirstSample(t *testing.T) {
	f := NewMedianEMAFilter(5, 0.3, 0)

	// first update must prime the EMA with the median, not decay from zero
	assert.InDelta(t, -60, f.Update(-60), epsilon)
}

func TestMedianEMASmoothing(t *testing.T) {
	f := NewMedianEMAFilter(1, 0.3, 0)

	assert.InDelta(t, -60, f.Update(-60), epsilon)
	// 0.3*-80 + 0.7*-60 = -66
	assert.InDelta(t, -66, f.Update(-80), epsilon)
}

func TestMedianEMASpikeRejection(t *testing.T) {
	f := NewMedianEMAFilter(5, 0.3, 0)

	for i := 0; i < 5; i++ {
		f.Update(-60)
	}

	// a single -20 dBm multipath spike never becomes the median, so the
	// smoothed output cannot move toward it
	out := f.Update(-20)
	assert.InDelta(t, -60, out, epsilon)
}

func TestMedianEMAConvergence(t *testing.T) {
	f := NewMedianEMAFilter(5, 0.3, 0)

	for i := 0; i < 5; i++ {
		f.Update(-60)
	}

	// after the level steps to -70, the output should close most of the gap
	// within the window plus a few EMA time constants
	var out float64
	for i := 0; i < 15; i++ {
		out = f.Update(-70)
	}
	assert.InDelta(t, -70, out, 0.5)
}

func TestMedianEMABias(t *testing.T) {
	f := NewMedianEMAFilter(3, 0.5, 2.5)
	assert.InDelta(t, -57.5, f.Update(-60), epsilon)
}

func TestMedianEMAResetReplay(t *testing.T) {
	samples := []float64{-60, -64, -58, -70, -66, -62}

	f := NewMedianEMAFilter(3, 0.4, 0)
	first := make([]float64, 0, len(samples))
	for _, s := range samples {
		first = append(first, f.Update(s))
	}

	f.Reset()
	for i, s := range samples {
		assert.InDelta(t, first[i], f.Update(s), epsilon,
			"replay after Reset diverged at sample %d", i)
	}
}

func TestAlphaForVariance(t *testing.T) {
	tests := []struct {
		name     string
		variance float64
		expected float64
	}{
		{"stable", 0, 0.5},
		{"lowBand", 5, 0.5},
		{"midBand", 5.1, 0.4},
		{"highBand", 10.1, 0.3},
		{"noisy", 20.1, 0.2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, alphaForVariance(tc.variance), epsilon)
		})
	}
}

func TestAdaptiveFilterSelectsAlpha(t *testing.T) {
	f := NewAdaptiveFilter(5, 10, 0)

	// a flat signal keeps variance in the stable band
	for i := 0; i < 10; i++ {
		f.Update(-60)
	}
	assert.InDelta(t, 0.5, f.inner.alpha, epsilon)

	// alternating +-10 dB swings push the variance above 20
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			f.Update(-50)
		} else {
			f.Update(-70)
		}
	}
	assert.InDelta(t, 0.2, f.inner.alpha, epsilon)
}

func TestKalmanLiteFirstSample(t *testing.T) {
	f := NewKalmanLiteFilter(0.008, 4.0, 0)
	assert.InDelta(t, -60, f.Update(-60), epsilon)
}

func TestKalmanLiteTracksStep(t *testing.T) {
	f := NewKalmanLiteFilter(0.008, 4.0, 0)

	f.Update(-60)
	var out float64
	for i := 0; i < 200; i++ {
		out = f.Update(-70)
	}

	assert.InDelta(t, -70, out, 1.0)

	// each update must move monotonically toward the measurement
	prev := out
	next := f.Update(-70)
	assert.LessOrEqual(t, next, prev+epsilon)
}

func TestKalmanLiteBias(t *testing.T) {
	f := NewKalmanLiteFilter(0.008, 4.0, -1.5)
	assert.InDelta(t, -61.5, f.Update(-60), epsilon)
}

func TestNewConditionerSelection(t *testing.T) {
	settings := NewServiceConfig().AppSettings

	settings.FilterMode = FilterMedianEMA
	_, ok := NewConditioner(settings, 0).(*MedianEMAFilter)
	require.True(t, ok)

	settings.FilterMode = FilterAdaptive
	_, ok = NewConditioner(settings, 0).(*AdaptiveFilter)
	require.True(t, ok)

	settings.FilterMode = FilterKalman
	_, ok = NewConditioner(settings, 0).(*KalmanLiteFilter)
	require.True(t, ok)
}
