//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

// Derivative computes a finite-difference rate of change (dB/s) for each point of a
// conditioned RSSI series. For index i it looks back to the most recent index j whose
// timestamp is at least spanSeconds older (always at least one sample step), and reports
// (v[i]-v[j])/(t[i]-t[j]). Points with no elapsed time report 0.
//
// values and timesMillis must be the same length and time-ordered.
func Derivative(values []float64, timesMillis []int64, spanSeconds float64) []float64 {
	rates := make([]float64, len(values))
	spanMillis := int64(spanSeconds * 1000)

	for i := range values {
		j := i
		for j > 0 && timesMillis[i]-timesMillis[j] < spanMillis {
			j--
		}
		if j == i {
			if i == 0 {
				continue // no lookback possible, rate stays 0
			}
			j = i - 1
		}

		dtMillis := timesMillis[i] - timesMillis[j]
		if dtMillis == 0 {
			continue
		}
		rates[i] = (values[i] - values[j]) / (float64(dtMillis) / 1000.0)
	}

	return rates
}

// TrendEstimator maintains a short rolling window of conditioned values and reports their
// current rate of change. It is the streaming form of Derivative, used to detect whether
// a beacon is approaching or retreating from a scanner while the absolute level is still
// ambiguous. Owned per (scanner, beacon) pair, single-writer.
type TrendEstimator struct {
	values      []float64
	timesMillis []int64
	capacity    int
	spanSeconds float64
}

// NewTrendEstimator creates a trend estimator that looks back spanSeconds and retains at
// most capacity samples (≈ window seconds / sample period).
func NewTrendEstimator(spanSeconds float64, capacity int) *TrendEstimator {
	if capacity < 2 {
		capacity = 2
	}

	return &TrendEstimator{
		values:      make([]float64, 0, capacity),
		timesMillis: make([]int64, 0, capacity),
		capacity:    capacity,
		spanSeconds: spanSeconds,
	}
}

// Add records a conditioned sample. Samples must arrive in non-decreasing time order.
func (te *TrendEstimator) Add(value float64, tsMillis int64) {
	if len(te.values) == te.capacity {
		copy(te.values, te.values[1:])
		copy(te.timesMillis, te.timesMillis[1:])
		te.values = te.values[:te.capacity-1]
		te.timesMillis = te.timesMillis[:te.capacity-1]
	}

	te.values = append(te.values, value)
	te.timesMillis = append(te.timesMillis, tsMillis)
}

// Rate returns the current rate of change in dB/s, or 0 with fewer than two samples.
func (te *TrendEstimator) Rate() float64 {
	n := len(te.values)
	if n < 2 {
		return 0
	}

	i := n - 1
	j := i
	spanMillis := int64(te.spanSeconds * 1000)
	for j > 0 && te.timesMillis[i]-te.timesMillis[j] < spanMillis {
		j--
	}
	if j == i {
		j = i - 1
	}

	dtMillis := te.timesMillis[i] - te.timesMillis[j]
	if dtMillis == 0 {
		return 0
	}
	return (te.values[i] - te.values[j]) / (float64(dtMillis) / 1000.0)
}

// Reset discards all samples while keeping the allocated window.
func (te *TrendEstimator) Reset() {
	te.values = te.values[:0]
	te.timesMillis = te.timesMillis[:0]
}
