//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

// ScannerRole names one of the two fixed gate radios. The state machine is explicitly
// two-sensor; there is no third role.
type ScannerRole string

const (
	RoleInner ScannerRole = "inner"
	RoleOuter ScannerRole = "outer"
)

// scannerChannel owns the signal-conditioning state for one (scanner, beacon) pair:
// the conditioner, the trend window, and the latest conditioned value. It is never
// shared across pairs.
type scannerChannel struct {
	conditioner Conditioner
	trend       *TrendEstimator

	lastValue      float64
	lastSeenMillis int64
}

func (ch *scannerChannel) update(rssi float64, tsMillis int64) float64 {
	v := ch.conditioner.Update(rssi)
	ch.trend.Add(v, tsMillis)
	ch.lastValue = v
	ch.lastSeenMillis = tsMillis
	return v
}

// sample renders the channel as FSM input at step time. A channel that has never seen a
// reading, or whose latest reading is older than the sample timeout, is absent.
func (ch *scannerChannel) sample(nowMillis, timeoutMillis int64) ScannerSample {
	if ch.lastSeenMillis == 0 || nowMillis-ch.lastSeenMillis > timeoutMillis {
		return ScannerSample{}
	}

	v := ch.lastValue
	rate := ch.trend.Rate()
	return ScannerSample{RSSI: &v, Trend: &rate}
}

func (ch *scannerChannel) reset() {
	ch.conditioner.Reset()
	ch.trend.Reset()
	ch.lastValue = 0
	ch.lastSeenMillis = 0
}

// Beacon is the live tracking state for one tracked boat beacon: one conditioning
// channel per gate scanner plus the presence FSM combining them. Created on first
// observation; only explicitly evicted (see BeaconProcessor.AgeOut).
type Beacon struct {
	ID       string
	LastRead int64
	channels map[ScannerRole]*scannerChannel
	fsm      *GateFSM
}

func newBeacon(id string, cfg ServiceConfig) *Beacon {
	as := cfg.AppSettings

	return &Beacon{
		ID: id,
		channels: map[ScannerRole]*scannerChannel{
			RoleInner: {
				conditioner: NewConditioner(as, cfg.BiasFor(as.InnerScannerID)),
				trend:       NewTrendEstimator(as.TrendSpanSeconds, as.trendCapacitySamples()),
			},
			RoleOuter: {
				conditioner: NewConditioner(as, cfg.BiasFor(as.OuterScannerID)),
				trend:       NewTrendEstimator(as.TrendSpanSeconds, as.trendCapacitySamples()),
			},
		},
		fsm: NewGateFSM(as),
	}
}

// StaticBeacon represents a Beacon object stuck in time for use with APIs and the
// snapshot cache.
type StaticBeacon struct {
	BeaconID  string    `json:"beacon_id"`
	State     GateState `json:"state"`
	LastRead  int64     `json:"last_read"`
	LastExit  int64     `json:"last_exit,omitempty"`
	LastEntry int64     `json:"last_entry,omitempty"`

	Scanners map[ScannerRole]StaticScannerStats `json:"scanners"`
}

// StaticScannerStats is the per-scanner slice of a StaticBeacon with pre-computed data.
type StaticScannerStats struct {
	LastSeen     int64   `json:"last_seen"`
	SmoothedRSSI float64 `json:"smoothed_rssi"`
	TrendDbps    float64 `json:"trend_dbps"`
}

// asStaticBeacon constructs a StaticBeacon from an existing Beacon pointer.
func (b *Beacon) asStaticBeacon() StaticBeacon {
	s := StaticBeacon{
		BeaconID:  b.ID,
		State:     b.fsm.State(),
		LastRead:  b.LastRead,
		LastExit:  b.fsm.LastExit(),
		LastEntry: b.fsm.LastEntry(),
		Scanners:  make(map[ScannerRole]StaticScannerStats, len(b.channels)),
	}

	for role, ch := range b.channels {
		if ch.lastSeenMillis == 0 {
			// skip never-seen channels
			continue
		}
		s.Scanners[role] = StaticScannerStats{
			LastSeen:     ch.lastSeenMillis,
			SmoothedRSSI: ch.lastValue,
			TrendDbps:    ch.trend.Rate(),
		}
	}

	return s
}

// asBeaconPtr converts a StaticBeacon back to a Beacon pointer for use in restoring a
// persisted snapshot. The conditioners are seeded with the previously smoothed value, so
// some precision is lost, but it preserves a general view of the data which is good
// enough for a warm restart.
func (s StaticBeacon) asBeaconPtr(cfg ServiceConfig) *Beacon {
	b := newBeacon(s.BeaconID, cfg)
	b.LastRead = s.LastRead
	b.fsm.restore(s.State, s.LastExit, s.LastEntry)

	for role, stats := range s.Scanners {
		ch, ok := b.channels[role]
		if !ok {
			continue
		}
		ch.conditioner.Update(stats.SmoothedRSSI)
		ch.trend.Add(stats.SmoothedRSSI, stats.LastSeen)
		ch.lastValue = stats.SmoothedRSSI
		ch.lastSeenMillis = stats.LastSeen
	}

	return b
}
