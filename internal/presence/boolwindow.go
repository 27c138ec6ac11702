//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

// boolWindow is a fixed-size rolling window of boolean samples used to debounce the
// state machine predicates. A predicate only counts as confirmed once at least K of the
// last windowSize pushed samples were true, so a single noisy sample can never drive a
// transition on its own.
//
// Like the rest of the state machine it is single-writer; the caller serializes pushes.
type boolWindow struct {
	values []bool
	index  int
	count  int // number of true samples currently in the window
}

func newBoolWindow(windowSize int) *boolWindow {
	if windowSize <= 0 {
		panic("illegal window size")
	}

	return &boolWindow{
		values: make([]bool, 0, windowSize),
	}
}

// Push appends a sample, evicting the oldest once the window is full.
func (w *boolWindow) Push(value bool) {
	if len(w.values) < cap(w.values) {
		w.values = append(w.values, value)
		if value {
			w.count++
		}
		return
	}

	if w.values[w.index] {
		w.count--
	}
	w.values[w.index] = value
	if value {
		w.count++
	}

	w.index++
	if w.index >= cap(w.values) {
		w.index = 0
	}
}

// TrueCount returns how many samples in the window are currently true.
func (w *boolWindow) TrueCount() int {
	return w.count
}

// Confirmed reports whether at least k samples in the window are true.
func (w *boolWindow) Confirmed(k int) bool {
	return w.count >= k
}

// Reset discards all samples while keeping the allocated window.
func (w *boolWindow) Reset() {
	w.values = w.values[:0]
	w.index = 0
	w.count = 0
}
