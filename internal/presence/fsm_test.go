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

func fp(v float64) *float64 {
	return &v
}

// step advances the FSM once with the given conditioned levels. nil means the scanner has
// no sample for the beacon.
func step(f *GateFSM, innerRSSI, outerRSSI, innerTrend, outerTrend *float64, ts int64) (GateState, bool) {
	return f.Step(StepInput{
		Inner:           ScannerSample{RSSI: innerRSSI, Trend: innerTrend},
		Outer:           ScannerSample{RSSI: outerRSSI, Trend: outerTrend},
		TimestampMillis: ts,
	})
}

func TestGateFSMStartsInside(t *testing.T) {
	f := NewGateFSM(NewServiceConfig().AppSettings)
	assert.Equal(t, Inside, f.State())
	assert.Zero(t, f.LastExit())
	assert.Zero(t, f.LastEntry())
}

func TestGateFSMRequiresConfirmation(t *testing.T) {
	// defaults: ConfirmCount 3 over a 10-sample window
	f := NewGateFSM(NewServiceConfig().AppSettings)

	// inner strong and a +10 dB outer-inner difference satisfy the Inside exit
	// predicate on every sample, but two samples must not be enough
	for i := int64(0); i < 2; i++ {
		state, changed := step(f, fp(-60), fp(-50), nil, nil, i*200)
		assert.Equal(t, Inside, state)
		assert.False(t, changed)
	}

	state, changed := step(f, fp(-60), fp(-50), nil, nil, 400)
	assert.Equal(t, Moving, state)
	assert.True(t, changed)
}

func TestGateFSMFullExitAndEntry(t *testing.T) {
	f := NewGateFSM(NewServiceConfig().AppSettings)

	ts := int64(0)
	next := func(innerRSSI, outerRSSI *float64) GateState {
		ts += 200
		state, _ := step(f, innerRSSI, outerRSSI, nil, nil, ts)
		return state
	}

	// inner strong, outer strong, difference +10 dB: each step can advance at most
	// one edge, so the cascade takes one step per state once confirmed
	require.Equal(t, Inside, next(fp(-60), fp(-50)))
	require.Equal(t, Inside, next(fp(-60), fp(-50)))
	require.Equal(t, Moving, next(fp(-60), fp(-50)))
	require.Equal(t, AtGate, next(fp(-60), fp(-50)))
	require.Equal(t, Exiting, next(fp(-60), fp(-50)))

	// the beacon leaves the inner scanner's range entirely; absence counts as weak
	require.Equal(t, Exiting, next(nil, fp(-60)))
	require.Equal(t, Exiting, next(nil, fp(-60)))
	require.Equal(t, Outside, next(nil, fp(-60)))
	assert.Equal(t, ts, f.LastExit(), "exit timestamp must be the confirming step's timestamp")

	// still outside: no trend data and the inner-weak window is saturated, so the
	// entry predicates stay quiet
	require.Equal(t, Outside, next(nil, fp(-60)))
	require.Equal(t, Outside, next(nil, fp(-60)))

	// the boat turns back: inner picks the beacon up again and the outer-inner
	// difference swings to -10 dB
	require.Equal(t, Outside, next(fp(-60), fp(-70)))
	require.Equal(t, Outside, next(fp(-60), fp(-70)))
	require.Equal(t, Entering, next(fp(-60), fp(-70)))

	// outer loses the beacon while inner stays strong
	require.Equal(t, Entering, next(fp(-60), nil))
	require.Equal(t, Entering, next(fp(-60), nil))
	require.Equal(t, Inside, next(fp(-60), nil))
	assert.Equal(t, ts, f.LastEntry())
	assert.Less(t, f.LastExit(), f.LastEntry())
}

func TestGateFSMMovingRetreatsInside(t *testing.T) {
	f := NewGateFSM(NewServiceConfig().AppSettings)

	// reach Moving on inner-approaching trend alone, without any outer signal
	ts := int64(0)
	for i := 0; i < 3; i++ {
		ts += 200
		step(f, fp(-60), nil, fp(5.0), nil, ts)
	}
	require.Equal(t, Moving, f.State())

	// the beacon goes quiet on the inner scanner: a false start, back to Inside
	var state GateState
	for i := 0; i < 3; i++ {
		ts += 200
		state, _ = step(f, nil, nil, nil, nil, ts)
	}
	assert.Equal(t, Inside, state)
	assert.Zero(t, f.LastExit(), "a retreat is not an exit")
}

func TestGateFSMExitingRetreatsToAtGate(t *testing.T) {
	f := NewGateFSM(NewServiceConfig().AppSettings)

	ts := int64(0)
	advance := func(innerRSSI, outerRSSI *float64, n int) {
		for i := 0; i < n; i++ {
			ts += 200
			step(f, innerRSSI, outerRSSI, nil, nil, ts)
		}
	}

	advance(fp(-60), fp(-50), 5)
	require.Equal(t, Exiting, f.State())

	// outer drops out while inner holds: the crossing stalled
	advance(fp(-60), nil, 3)
	assert.Equal(t, AtGate, f.State())
	assert.Zero(t, f.LastExit())
}

func TestGateFSMHysteresisHoldsState(t *testing.T) {
	f := NewGateFSM(NewServiceConfig().AppSettings)

	// inner level sits between the low and high thresholds (-75, -67): neither
	// strong nor weak, so no predicate accumulates and Inside holds forever
	for i := int64(1); i <= 50; i++ {
		state, changed := step(f, fp(-70), fp(-70), nil, nil, i*200)
		require.Equal(t, Inside, state)
		require.False(t, changed)
	}
}

func TestGateFSMReset(t *testing.T) {
	f := NewGateFSM(NewServiceConfig().AppSettings)

	ts := int64(0)
	for i := 0; i < 8; i++ {
		ts += 200
		if i < 5 {
			step(f, fp(-60), fp(-50), nil, nil, ts)
		} else {
			step(f, nil, fp(-60), nil, nil, ts)
		}
	}
	require.Equal(t, Outside, f.State())
	require.NotZero(t, f.LastExit())

	f.Reset()
	assert.Equal(t, Inside, f.State())
	assert.Zero(t, f.LastExit())
	assert.Zero(t, f.LastEntry())

	// confirmation windows must be empty again: two confirming samples cannot move it
	step(f, fp(-60), fp(-50), nil, nil, ts+200)
	state, _ := step(f, fp(-60), fp(-50), nil, nil, ts+400)
	assert.Equal(t, Inside, state)
}

func TestGateFSMRestore(t *testing.T) {
	f := NewGateFSM(NewServiceConfig().AppSettings)
	f.restore(Outside, 12345, 0)

	assert.Equal(t, Outside, f.State())
	assert.EqualValues(t, 12345, f.LastExit())

	// rebuilt windows start empty: the first two samples after a restore cannot
	// confirm an edge
	step(f, fp(-60), fp(-70), nil, nil, 12600)
	state, changed := step(f, fp(-60), fp(-70), nil, nil, 12800)
	assert.Equal(t, Outside, state)
	assert.False(t, changed)
}
