//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testTiers = []EscalationTier{
	{DelayMinutes: 0, Channels: []string{"web"}},
	{DelayMinutes: 15, Channels: []string{"web", "push"}},
	{DelayMinutes: 30, Channels: []string{"web", "push", "email"}},
	{DelayMinutes: 60, Channels: []string{"web", "push", "email", "sms"}},
}

func TestEvaluateEscalation(t *testing.T) {
	tests := []struct {
		name       string
		outsideFor time.Duration
		level      int
		channels   []string
	}{
		{"immediate", 0, 0, []string{"web"}},
		{"justUnderTier1", 14 * time.Minute, 0, []string{"web"}},
		{"exactlyTier1", 15 * time.Minute, 1, []string{"web", "push"}},
		{"betweenTiers", 20 * time.Minute, 1, []string{"web", "push"}},
		{"tier2", 45 * time.Minute, 2, []string{"web", "push", "email"}},
		{"topTier", 3 * time.Hour, 3, []string{"web", "push", "email", "sms"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			level, channels := EvaluateEscalation(testTiers, tc.outsideFor)
			assert.Equal(t, tc.level, level)
			assert.Equal(t, tc.channels, channels)
		})
	}
}

func TestEvaluateEscalationNoTierReached(t *testing.T) {
	delayed := []EscalationTier{
		{DelayMinutes: 10, Channels: []string{"web"}},
	}

	level, channels := EvaluateEscalation(delayed, 5*time.Minute)
	assert.Equal(t, -1, level)
	assert.Nil(t, channels)

	level, channels = EvaluateEscalation(nil, time.Hour)
	assert.Equal(t, -1, level)
	assert.Nil(t, channels)
}

func TestOutsideDuration(t *testing.T) {
	const (
		closing = int64(1_000_000)
		now     = closing + 30*60*1000 // 30 minutes after closing
	)

	tests := []struct {
		name       string
		exitMillis int64
		expected   time.Duration
	}{
		// a beacon that exited 10 minutes after closing has been out 20 minutes
		{"exitAfterClosing", closing + 10*60*1000, 20 * time.Minute},
		// the beacon exited before the shed closed; only the time since closing counts
		{"exitBeforeClosing", closing - 60*60*1000, 30 * time.Minute},
		// no exit on record (stale snapshot): fall back to closing as well
		{"unknownExit", 0, 30 * time.Minute},
		// an exit timestamp in the future clamps at zero instead of going negative
		{"futureExit", now + 1000, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, OutsideDuration(now, tc.exitMillis, closing))
		})
	}
}

func TestLastClosingMillis(t *testing.T) {
	loc := time.UTC

	// 20:30 is after the 18:00 closing: today's closing applies
	now := time.Date(2023, 6, 10, 20, 30, 0, 0, loc)
	expected := time.Date(2023, 6, 10, 18, 0, 0, 0, loc)
	assert.Equal(t, UnixMilli(expected), LastClosingMillis(now, 18, 0))

	// 08:15 is before today's closing: yesterday's closing applies
	now = time.Date(2023, 6, 10, 8, 15, 0, 0, loc)
	expected = time.Date(2023, 6, 9, 18, 0, 0, 0, loc)
	assert.Equal(t, UnixMilli(expected), LastClosingMillis(now, 18, 0))

	// exactly at closing counts as today's
	now = time.Date(2023, 6, 10, 18, 0, 0, 0, loc)
	assert.Equal(t, UnixMilli(now), LastClosingMillis(now, 18, 0))
}
