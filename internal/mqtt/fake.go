//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package mqtt

import (
	"sync"

	"github.com/harborwatch/ble-gate-presence-service/internal/presence"
)

// FakeClient records published escalations and lets tests inject readings, standing in
// for a broker connection.
type FakeClient struct {
	mu sync.Mutex

	// Escalations contains every notice that was published, in order.
	Escalations []presence.EscalationNotice
	// EscalationTopics contains the topic of each published notice.
	EscalationTopics []string
	// Events contains every presence event that was published, in order.
	Events []presence.Event

	// PublishError, if set, will be returned by PublishEscalation.
	PublishError error
	// SubscribeError, if set, will be returned by SubscribeReadings.
	SubscribeError error

	// Closed tracks if Close was called.
	Closed bool

	handler ReadingHandler
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// SubscribeReadings captures the handler for later injection.
func (f *FakeClient) SubscribeReadings(_ string, handler ReadingHandler) error {
	if f.SubscribeError != nil {
		return f.SubscribeError
	}

	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return nil
}

// Inject delivers a reading to the subscribed handler as the broker would.
func (f *FakeClient) Inject(reading presence.Reading) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		handler(reading)
	}
}

// InjectPayload runs a raw payload through the same decode path as the real client,
// dropping it when malformed. It reports whether the payload was delivered.
func (f *FakeClient) InjectPayload(payload []byte) bool {
	reading, err := DecodeReading(payload)
	if err != nil {
		return false
	}
	f.Inject(reading)
	return true
}

// PublishEscalation records the notice.
func (f *FakeClient) PublishEscalation(topic string, notice presence.EscalationNotice) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.mu.Lock()
	f.Escalations = append(f.Escalations, notice)
	f.EscalationTopics = append(f.EscalationTopics, topic)
	f.mu.Unlock()
	return nil
}

// PublishEvent records the event.
func (f *FakeClient) PublishEvent(_ string, event presence.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.mu.Lock()
	f.Events = append(f.Events, event)
	f.mu.Unlock()
	return nil
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
