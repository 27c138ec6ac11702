//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/edgexfoundry/go-mod-core-contracts/v2/clients/logger"
	"github.com/pkg/errors"

	"github.com/harborwatch/ble-gate-presence-service/internal/presence"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	readingQoS    = 0 // readings are a stream; a lost sample is just a missing update
	escalationQoS = 1 // escalation notices should survive a flaky link
)

// RealClient talks to an actual MQTT broker via paho.
type RealClient struct {
	lc     logger.LoggingClient
	client paho.Client
}

// NewRealClient creates a client connected to the given broker.
func NewRealClient(lc logger.LoggingClient, broker, clientID string) (*RealClient, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New("broker connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "connect to broker")
	}

	return &RealClient{lc: lc, client: client}, nil
}

// SubscribeReadings subscribes to the readings topic. Paho invokes the callback from its
// router goroutine in publish order, which preserves the per-beacon timestamp ordering
// the engine requires as long as the scanners publish in order.
func (c *RealClient) SubscribeReadings(topic string, handler ReadingHandler) error {
	token := c.client.Subscribe(topic, readingQoS, func(_ paho.Client, msg paho.Message) {
		reading, err := DecodeReading(msg.Payload())
		if err != nil {
			c.lc.Warn("Dropping malformed reading.", "topic", msg.Topic(), "error", err.Error())
			return
		}
		handler(reading)
	})

	if !token.WaitTimeout(connectTimeout) {
		return errors.Errorf("subscribe timeout, topic=%s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "subscribe failed, topic=%s", topic)
	}

	c.lc.Info("Subscribed to readings.", "topic", topic)
	return nil
}

// PublishEscalation sends an escalation notice to the fan-out topic.
func (c *RealClient) PublishEscalation(topic string, notice presence.EscalationNotice) error {
	payload, err := EncodeEscalation(notice)
	if err != nil {
		return errors.Wrap(err, "encode escalation notice")
	}

	token := c.client.Publish(topic, escalationQoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("publish timeout, topic=%s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "publish failed, topic=%s", topic)
	}

	return nil
}

// PublishEvent sends a presence event to the trip-logging topic.
func (c *RealClient) PublishEvent(topic string, event presence.Event) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return errors.Wrap(err, "encode presence event")
	}

	token := c.client.Publish(topic, escalationQoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("publish timeout, topic=%s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "publish failed, topic=%s", topic)
	}

	return nil
}

// Close disconnects from the broker, allowing in-flight messages a moment to finish.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // milliseconds
	return nil
}
