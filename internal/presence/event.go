//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

// EventType is an enum of the different type of presence events.
type EventType string

const (
	// StateChangedType defines a presence event for an intermediate gate-crossing
	// transition (Moving, AtGate, Exiting, Entering and their retreats).
	StateChangedType EventType = "StateChanged"
	// ExitedType defines a presence event when a beacon completes a gate crossing and is
	// confirmed outside on open water.
	ExitedType EventType = "Exited"
	// EnteredType defines a presence event when a beacon completes a gate crossing back
	// into the shed.
	EnteredType EventType = "Entered"
)

// BaseEvent is the foundation that all presence events are based on and includes the
// values common between all of them.
type BaseEvent struct {
	// BeaconID identifies the tracked beacon attached to the boat.
	BeaconID string `json:"beacon_id"`
	// Timestamp is the time at which this event occurred. It represents milliseconds
	// since the Unix Epoch.
	Timestamp int64 `json:"timestamp"`
}

// StateChangedEvent is generated for every confirmed transition that is not a completed
// exit or entry, so callers can follow gate-crossing progress.
type StateChangedEvent struct {
	BaseEvent
	// OldState is the state the beacon left.
	OldState GateState `json:"old_state"`
	// NewState is the state the beacon is now in.
	NewState GateState `json:"new_state"`
}

// ExitedEvent is generated when a beacon transitions Exiting→Outside. Its timestamp is
// the recorded exit time used for trip logging and escalation.
type ExitedEvent struct {
	BaseEvent
}

// EnteredEvent is generated when a beacon transitions Entering→Inside. Its timestamp is
// the recorded entry time.
type EnteredEvent struct {
	BaseEvent
	// TripDurationMillis is the time between the preceding exit and this entry, for
	// trip-duration computation. 0 when no exit was recorded (e.g. restored state).
	TripDurationMillis int64 `json:"trip_duration_millis,omitempty"`
}

// Event is an interface that is implemented to map Event structs to their corresponding
// EventType strings.
type Event interface {
	OfType() EventType
}

// OfType for StateChangedEvent returns StateChangedType
func (s StateChangedEvent) OfType() EventType {
	return StateChangedType
}

// OfType for ExitedEvent returns ExitedType
func (e ExitedEvent) OfType() EventType {
	return ExitedType
}

// OfType for EnteredEvent returns EnteredType
func (e EnteredEvent) OfType() EventType {
	return EnteredType
}
