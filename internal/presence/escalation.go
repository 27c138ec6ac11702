//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

import "time"

// EscalationTier pairs a continuous-outside delay with the notification channels the
// external fan-out should use once that delay is reached. Tiers are static configuration,
// read-only at runtime, ordered by ascending delay.
type EscalationTier struct {
	DelayMinutes int      `json:"delay_minutes"`
	Channels     []string `json:"channels"`
}

// EvaluateEscalation returns the index and channel set of the highest tier whose delay
// has been reached by the given continuous-outside duration, or (-1, nil) when no tier
// has been reached. Pure function of its inputs; the monitoring loop recomputes it on
// every poll.
func EvaluateEscalation(tiers []EscalationTier, outsideFor time.Duration) (int, []string) {
	level := -1
	var channels []string

	for i, tier := range tiers {
		if outsideFor >= time.Duration(tier.DelayMinutes)*time.Minute {
			level = i
			channels = tier.Channels
		}
	}

	return level, channels
}

// OutsideDuration computes how long a beacon has been continuously outside as of
// nowMillis. The duration is measured from the exit timestamp, except when the exit
// predates the most recent shed closing time (or is unknown, e.g. restored from an old
// snapshot), in which case it is measured from the closing time.
func OutsideDuration(nowMillis, exitMillis, closingMillis int64) time.Duration {
	base := exitMillis
	if base == 0 || base < closingMillis {
		base = closingMillis
	}
	if base >= nowMillis {
		return 0
	}
	return time.Duration(nowMillis-base) * time.Millisecond
}

// LastClosingMillis returns the most recent daily shed closing time at or before now,
// as epoch millis in now's location.
func LastClosingMillis(now time.Time, hour, minute int) int64 {
	closing := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if closing.After(now) {
		closing = closing.AddDate(0, 0, -1)
	}
	return UnixMilli(closing)
}
