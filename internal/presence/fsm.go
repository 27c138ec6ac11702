//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

// GateState is the discrete position of a beacon in the gate-crossing lifecycle.
type GateState string

const (
	Inside   GateState = "Inside"
	Moving   GateState = "Moving"
	AtGate   GateState = "AtGate"
	Exiting  GateState = "Exiting"
	Outside  GateState = "Outside"
	Entering GateState = "Entering"
)

// ScannerSample is the conditioned output of one gate scanner at step time.
// A nil RSSI means the scanner has no recent sample for the beacon; a nil Trend means
// there is not enough history to estimate one.
type ScannerSample struct {
	RSSI  *float64
	Trend *float64
}

// StepInput carries one synchronous observation of both gate scanners into the FSM.
type StepInput struct {
	Inner ScannerSample // nominally strong while the beacon is inside the shed
	Outer ScannerSample // nominally strong while the beacon is outside on the water
	// TimestampMillis is the observation time; step invocations must be time-monotonic
	// for the exit/entry timestamps to be meaningful.
	TimestampMillis int64
}

// GateFSM reconciles the two conditioned scanner streams for a single beacon into a
// low-flap inside/outside classification. Every transition predicate runs through its
// own rolling confirmation window, and the strong/weak level predicates use a hysteresis
// threshold pair, so neither a single noisy sample nor jitter around one cutoff can move
// the state.
//
// The FSM is cyclic with no terminal state and performs no locking; concurrent steps for
// the same beacon must be serialized by the caller.
type GateFSM struct {
	settings ApplicationSettings
	state    GateState

	lastExitMillis  int64
	lastEntryMillis int64

	innerStrong      *boolWindow
	outerStrong      *boolWindow
	innerWeak        *boolWindow
	outerWeak        *boolWindow
	innerApproaching *boolWindow
	innerRetreating  *boolWindow
	outerApproaching *boolWindow
	outerRetreating  *boolWindow
	diffPositive     *boolWindow
	diffNegative     *boolWindow
}

// NewGateFSM creates a beacon FSM in the Inside state.
func NewGateFSM(settings ApplicationSettings) *GateFSM {
	n := settings.confirmationWindowSamples()

	return &GateFSM{
		settings:         settings,
		state:            Inside,
		innerStrong:      newBoolWindow(n),
		outerStrong:      newBoolWindow(n),
		innerWeak:        newBoolWindow(n),
		outerWeak:        newBoolWindow(n),
		innerApproaching: newBoolWindow(n),
		innerRetreating:  newBoolWindow(n),
		outerApproaching: newBoolWindow(n),
		outerRetreating:  newBoolWindow(n),
		diffPositive:     newBoolWindow(n),
		diffNegative:     newBoolWindow(n),
	}
}

// State returns the current gate state.
func (f *GateFSM) State() GateState {
	return f.state
}

// LastExit returns the timestamp (epoch millis) of the most recent Exiting→Outside
// transition, or 0 if the beacon has never exited.
func (f *GateFSM) LastExit() int64 {
	return f.lastExitMillis
}

// LastEntry returns the timestamp (epoch millis) of the most recent Entering→Inside
// transition, or 0 if the beacon has never entered.
func (f *GateFSM) LastEntry() int64 {
	return f.lastEntryMillis
}

// Step pushes one observation through the predicate windows and advances the state at
// most one edge. It returns the new state and whether it changed.
func (f *GateFSM) Step(in StepInput) (GateState, bool) {
	f.pushPredicates(in)

	k := f.settings.ConfirmCount
	prev := f.state

	// First matching outgoing edge wins; an unmatched step leaves the state unchanged.
	switch f.state {
	case Inside:
		if f.innerStrong.Confirmed(k) && (f.innerApproaching.Confirmed(k) || f.diffPositive.Confirmed(k)) {
			f.state = Moving
		}

	case Moving:
		if f.outerStrong.Confirmed(k) {
			f.state = AtGate
		} else if f.innerWeak.Confirmed(k) {
			// false start, retreat to inside
			f.state = Inside
		}

	case AtGate:
		if (f.outerApproaching.Confirmed(k) && f.innerRetreating.Confirmed(k)) || f.diffPositive.Confirmed(k) {
			f.state = Exiting
		}

	case Exiting:
		if f.innerWeak.Confirmed(k) && f.outerStrong.Confirmed(k) {
			f.state = Outside
			f.lastExitMillis = in.TimestampMillis
		} else if f.outerWeak.Confirmed(k) {
			f.state = AtGate
		}

	case Outside:
		if (f.outerApproaching.Confirmed(k) && !f.innerWeak.Confirmed(k)) || f.diffNegative.Confirmed(k) {
			f.state = Entering
		}

	case Entering:
		if f.outerWeak.Confirmed(k) && f.innerStrong.Confirmed(k) {
			f.state = Inside
			f.lastEntryMillis = in.TimestampMillis
		}
	}

	return f.state, f.state != prev
}

func (f *GateFSM) pushPredicates(in StepInput) {
	s := f.settings
	inner, outer := in.Inner, in.Outer

	f.innerStrong.Push(inner.RSSI != nil && *inner.RSSI >= s.InnerHighDbm)
	f.outerStrong.Push(outer.RSSI != nil && *outer.RSSI >= s.OuterHighDbm)
	// absence counts as weak
	f.innerWeak.Push(inner.RSSI == nil || *inner.RSSI <= s.InnerLowDbm)
	f.outerWeak.Push(outer.RSSI == nil || *outer.RSSI <= s.OuterLowDbm)

	f.innerApproaching.Push(inner.Trend != nil && *inner.Trend >= s.VelocityThresholdDbps)
	f.innerRetreating.Push(inner.Trend != nil && *inner.Trend <= -s.VelocityThresholdDbps)
	f.outerApproaching.Push(outer.Trend != nil && *outer.Trend >= s.VelocityThresholdDbps)
	f.outerRetreating.Push(outer.Trend != nil && *outer.Trend <= -s.VelocityThresholdDbps)

	bothPresent := inner.RSSI != nil && outer.RSSI != nil
	f.diffPositive.Push(bothPresent && (*outer.RSSI-*inner.RSSI) >= s.DeltaPositiveDb)
	f.diffNegative.Push(bothPresent && (*outer.RSSI-*inner.RSSI) <= s.DeltaNegativeDb)
}

// Reset returns the FSM to its initial Inside state and clears every confirmation window
// and transition timestamp.
func (f *GateFSM) Reset() {
	f.state = Inside
	f.lastExitMillis = 0
	f.lastEntryMillis = 0

	for _, w := range f.windows() {
		w.Reset()
	}
}

func (f *GateFSM) windows() []*boolWindow {
	return []*boolWindow{
		f.innerStrong, f.outerStrong,
		f.innerWeak, f.outerWeak,
		f.innerApproaching, f.innerRetreating,
		f.outerApproaching, f.outerRetreating,
		f.diffPositive, f.diffNegative,
	}
}

// restore sets the state and transition timestamps, used when rebuilding a beacon from a
// persisted snapshot. Confirmation windows start empty; the next WIN_S of samples rebuild
// them before any further transition can confirm.
func (f *GateFSM) restore(state GateState, lastExitMillis, lastEntryMillis int64) {
	f.state = state
	f.lastExitMillis = lastExitMillis
	f.lastEntryMillis = lastEntryMillis
}
