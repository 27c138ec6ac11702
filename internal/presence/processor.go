//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"fmt"
	"math"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v2/clients/logger"
	"github.com/pkg/errors"
)

// Reading is one raw RSSI observation of a beacon by a gate scanner, produced by the
// external radio layer at irregular intervals. Immutable once created.
type Reading struct {
	ScannerID string  `json:"scanner_id"`
	BeaconID  string  `json:"beacon_id"`
	RSSI      float64 `json:"rssi"`
	// Timestamp is milliseconds since the Unix Epoch.
	Timestamp int64 `json:"timestamp"`
}

// BeaconProcessor holds the current beacon registry and processes incoming readings.
//
// It is the single writer of all per-beacon state: readings for the same beacon must be
// applied in non-decreasing timestamp order from one goroutine (the app task loop).
// Different processors, and the pure helpers, have no shared state.
type BeaconProcessor struct {
	lc      logger.LoggingClient
	beacons map[string]*Beacon
	config  ServiceConfig
}

// NewBeaconProcessor creates a beacon processor, optionally restoring beacons from a
// persisted snapshot.
func NewBeaconProcessor(lc logger.LoggingClient, cfg ServiceConfig, restored []StaticBeacon) *BeaconProcessor {
	bp := &BeaconProcessor{
		lc:      lc,
		beacons: make(map[string]*Beacon),
		config:  cfg,
	}

	for _, s := range restored {
		bp.beacons[s.BeaconID] = s.asBeaconPtr(cfg)
	}

	return bp
}

// roleOf maps a raw scanner id onto its configured gate role.
func (bp *BeaconProcessor) roleOf(scannerID string) (ScannerRole, bool) {
	switch scannerID {
	case bp.config.AppSettings.InnerScannerID:
		return RoleInner, true
	case bp.config.AppSettings.OuterScannerID:
		return RoleOuter, true
	}
	return "", false
}

// ProcessReading validates and applies one reading: it conditions the scanner's signal,
// updates its trend window, then steps the beacon's FSM with the latest view of both
// scanners. It returns a non-nil Event when the step produced a confirmed transition.
//
// Malformed readings (non-finite RSSI, unknown scanner, bad timestamp) are rejected here
// and never reach the filters; nothing past this boundary can fail.
func (bp *BeaconProcessor) ProcessReading(r Reading) (Event, error) {
	if r.BeaconID == "" {
		return nil, errors.New("reading has no beacon id")
	}
	if math.IsNaN(r.RSSI) || math.IsInf(r.RSSI, 0) {
		return nil, errors.Errorf("reading for beacon %s has non-finite rssi", r.BeaconID)
	}
	if r.Timestamp <= 0 {
		return nil, errors.Errorf("reading for beacon %s has invalid timestamp %d", r.BeaconID, r.Timestamp)
	}

	role, known := bp.roleOf(r.ScannerID)
	if !known {
		return nil, errors.Errorf("reading from unknown scanner %q", r.ScannerID)
	}

	beacon, exists := bp.beacons[r.BeaconID]
	if !exists {
		beacon = newBeacon(r.BeaconID, bp.config)
		bp.beacons[r.BeaconID] = beacon
		bp.lc.Info("Tracking new beacon.", "beacon", r.BeaconID)
	}

	beacon.channels[role].update(r.RSSI, r.Timestamp)
	if r.Timestamp > beacon.LastRead {
		beacon.LastRead = r.Timestamp
	}

	return bp.stepBeacon(beacon, r.Timestamp), nil
}

// stepBeacon advances one beacon's FSM using the freshest conditioned view of both
// scanners and converts a confirmed transition into its event.
func (bp *BeaconProcessor) stepBeacon(beacon *Beacon, nowMillis int64) Event {
	timeout := bp.config.AppSettings.sampleTimeoutMillis()

	prev := beacon.fsm.State()
	state, changed := beacon.fsm.Step(StepInput{
		Inner:           beacon.channels[RoleInner].sample(nowMillis, timeout),
		Outer:           beacon.channels[RoleOuter].sample(nowMillis, timeout),
		TimestampMillis: nowMillis,
	})
	if !changed {
		return nil
	}

	base := BaseEvent{BeaconID: beacon.ID, Timestamp: nowMillis}
	bp.lc.Debug("Beacon state changed.",
		"beacon", beacon.ID, "from", string(prev), "to", string(state))

	switch state {
	case Outside:
		return ExitedEvent{BaseEvent: base}

	case Inside:
		if prev != Entering {
			// Moving→Inside retreat, a false start
			return StateChangedEvent{BaseEvent: base, OldState: prev, NewState: state}
		}
		e := EnteredEvent{BaseEvent: base}
		if exit := beacon.fsm.LastExit(); exit > 0 && exit < nowMillis {
			e.TripDurationMillis = nowMillis - exit
		}
		return e

	default:
		return StateChangedEvent{BaseEvent: base, OldState: prev, NewState: state}
	}
}

// Snapshot takes a snapshot of the entire beacon registry as a flat slice of non-pointer
// StaticBeacon objects for the APIs and the persistence cache.
func (bp *BeaconProcessor) Snapshot() []StaticBeacon {
	res := make([]StaticBeacon, 0, len(bp.beacons))
	for _, beacon := range bp.beacons {
		res = append(res, beacon.asStaticBeacon())
	}
	return res
}

// StateOf returns the snapshot view of a single beacon.
func (bp *BeaconProcessor) StateOf(beaconID string) (StaticBeacon, bool) {
	beacon, ok := bp.beacons[beaconID]
	if !ok {
		return StaticBeacon{}, false
	}
	return beacon.asStaticBeacon(), true
}

// EscalationNotice is the on-demand escalation output for a beacon currently outside,
// consumed by the external notification fan-out service.
type EscalationNotice struct {
	BeaconID     string   `json:"beacon_id"`
	UrgencyLevel int      `json:"urgency_level"`
	ChannelSet   []string `json:"channel_set"`
	OutsideSince int64    `json:"outside_since,omitempty"`
}

// EscalationFor computes the current escalation tier for a beacon. The second return is
// false when the beacon is unknown, not outside, or has not reached any tier.
func (bp *BeaconProcessor) EscalationFor(beaconID string, now time.Time) (EscalationNotice, bool) {
	beacon, ok := bp.beacons[beaconID]
	if !ok || beacon.fsm.State() != Outside {
		return EscalationNotice{}, false
	}

	as := bp.config.AppSettings
	closing := LastClosingMillis(now, as.ClosingHour, as.ClosingMinute)
	duration := OutsideDuration(UnixMilli(now), beacon.fsm.LastExit(), closing)

	level, channels := EvaluateEscalation(as.EscalationTiers, duration)
	if level < 0 {
		return EscalationNotice{}, false
	}

	return EscalationNotice{
		BeaconID:     beaconID,
		UrgencyLevel: level,
		ChannelSet:   channels,
		OutsideSince: beacon.fsm.LastExit(),
	}, true
}

// CheckEscalations sweeps all beacons and returns a notice for every beacon currently
// outside, for the periodic escalation publisher.
func (bp *BeaconProcessor) CheckEscalations(now time.Time) []EscalationNotice {
	var notices []EscalationNotice
	for id, beacon := range bp.beacons {
		if beacon.fsm.State() != Outside {
			continue
		}
		if notice, ok := bp.EscalationFor(id, now); ok {
			notices = append(notices, notice)
		}
	}
	return notices
}

// AgeOut is a cleanup method that will remove beacons from the registry if they have not
// been seen in a long enough time. Without it the string-keyed registry would grow
// without bound as guest boats come and go.
func (bp *BeaconProcessor) AgeOut() int {
	// subtract the AgeOutHours to get the minimum allowed LastRead timestamp.
	// anything older than that is considered aged-out.
	minTimestamp := UnixMilli(time.Now().Add(time.Hour * -time.Duration(bp.config.AppSettings.AgeOutHours)))

	// developer note: Go allows us to remove from a map while iterating
	var numRemoved int
	for id, beacon := range bp.beacons {
		if beacon.LastRead < minTimestamp {
			numRemoved++
			delete(bp.beacons, id)
		}
	}

	if numRemoved > 0 {
		bp.lc.Info(fmt.Sprintf("Beacon ageout removed %d beacon(s).", numRemoved))
	} else {
		bp.lc.Debug("No beacons were aged-out.")
	}
	return numRemoved
}
