//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package mqtt moves decoded gate readings and escalation notices over an MQTT broker,
// with an abstraction for testing. The BLE scanners decode advertisement frames
// themselves and publish plain JSON readings; this service only subscribes.
package mqtt

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/harborwatch/ble-gate-presence-service/internal/presence"
)

// ReadingHandler receives each decoded reading from the broker, in arrival order.
type ReadingHandler func(reading presence.Reading)

// Client connects the service to the broker: a reading subscription inbound and
// escalation notices outbound.
type Client interface {
	// SubscribeReadings delivers every valid reading published on topic to handler.
	// Malformed payloads are dropped at this boundary and never reach the engine.
	SubscribeReadings(topic string, handler ReadingHandler) error

	// PublishEscalation sends an escalation notice for the external notification
	// fan-out. Returns an error if publishing fails (must not crash the process).
	PublishEscalation(topic string, notice presence.EscalationNotice) error

	// PublishEvent sends a presence event (state change, exit, entry) for external
	// trip-logging consumers.
	PublishEvent(topic string, event presence.Event) error

	// Close disconnects from the broker.
	Close() error
}

// DecodeReading parses and validates a reading payload. It rejects anything the
// presence engine must never see: unparseable JSON, missing ids, non-finite RSSI
// and non-positive timestamps.
func DecodeReading(payload []byte) (presence.Reading, error) {
	var r presence.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return presence.Reading{}, errors.Wrap(err, "unparseable reading payload")
	}

	if r.ScannerID == "" || r.BeaconID == "" {
		return presence.Reading{}, errors.New("reading payload missing scanner or beacon id")
	}
	if math.IsNaN(r.RSSI) || math.IsInf(r.RSSI, 0) {
		return presence.Reading{}, errors.Errorf("reading for beacon %s has non-finite rssi", r.BeaconID)
	}
	if r.Timestamp <= 0 {
		return presence.Reading{}, errors.Errorf("reading for beacon %s has invalid timestamp %d",
			r.BeaconID, r.Timestamp)
	}

	return r, nil
}

// EncodeEscalation renders an escalation notice as its JSON wire payload.
func EncodeEscalation(notice presence.EscalationNotice) ([]byte, error) {
	return json.Marshal(notice)
}

// EncodeEvent renders a presence event as its JSON wire payload, tagged with the event
// type so consumers can dispatch without sniffing fields.
func EncodeEvent(event presence.Event) ([]byte, error) {
	wrapper := struct {
		Type    presence.EventType `json:"type"`
		Payload presence.Event     `json:"payload"`
	}{
		Type:    event.OfType(),
		Payload: event,
	}
	return json.Marshal(wrapper)
}
