//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"sort"
	"sync"
)

// CircularBuffer is essentially a moving slice with a max size, where every time a new value is
// inserted, the oldest value is removed from the slice. This is used for the sliding windows of
// the signal conditioners (median and variance) over the most recent RSSI samples.
// For performance reasons it is implemented as a fixed size slice with a pointer to where to
// insert the next value such that no new memory allocations need to be made.
type CircularBuffer struct {
	values []float64
	total  float64
	index  int
	mutex  sync.RWMutex
}

// NewCircularBuffer allocates memory for a new CircularBuffer with the given windowSize
func NewCircularBuffer(windowSize int) *CircularBuffer {
	if windowSize <= 0 {
		panic("illegal window size")
	}

	return &CircularBuffer{
		values: make([]float64, 0, windowSize),
	}
}

// Len returns the number of actual values present in the buffer
func (buff *CircularBuffer) Len() int {
	buff.mutex.RLock()
	defer buff.mutex.RUnlock()

	return len(buff.values)
}

// Mean returns the average value of all data points in the backing slice.
// Because this is a circular buffer, this value can be considered as a moving average
//
// NOTE: If there is no data in the buffer, this function will return: NaN
func (buff *CircularBuffer) Mean() float64 {
	buff.mutex.RLock()
	defer buff.mutex.RUnlock()

	return buff.total / float64(len(buff.values))
}

// Median returns the middle value of the sorted window contents, or the average of the
// two middle values when the window holds an even number of samples.
//
// NOTE: If there is no data in the buffer, this function will return: 0
func (buff *CircularBuffer) Median() float64 {
	buff.mutex.RLock()
	sorted := make([]float64, len(buff.values))
	copy(sorted, buff.values)
	buff.mutex.RUnlock()

	if len(sorted) == 0 {
		return 0
	}

	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Variance returns the sample variance of the window contents. Windows with fewer than
// two samples have no spread and report 0.
func (buff *CircularBuffer) Variance() float64 {
	buff.mutex.RLock()
	defer buff.mutex.RUnlock()

	n := len(buff.values)
	if n < 2 {
		return 0
	}

	mean := buff.total / float64(n)
	var sumSq float64
	for _, v := range buff.values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(n-1)
}

// AddValue appends a new value onto the backing slice,
// overriding the oldest existing value if count has reached windowSize
func (buff *CircularBuffer) AddValue(value float64) {
	buff.mutex.Lock()
	defer buff.mutex.Unlock()

	if len(buff.values) < cap(buff.values) {
		buff.values = append(buff.values, value)
		buff.total += value
		return
	}

	// subtract old value and add new value
	buff.total = buff.total - buff.values[buff.index] + value
	// record new value where old was
	buff.values[buff.index] = value

	buff.index++
	if buff.index >= cap(buff.values) {
		// wrap if needed
		buff.index = 0
	}
}

// Reset discards all values while keeping the allocated window.
func (buff *CircularBuffer) Reset() {
	buff.mutex.Lock()
	defer buff.mutex.Unlock()

	buff.values = buff.values[:0]
	buff.total = 0
	buff.index = 0
}
