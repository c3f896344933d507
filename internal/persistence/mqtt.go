// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/solar"
)

const mqttConnectTimeout = 10 * time.Second

// publisher is the part of mqtt.Client used by MQTTSink.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes every snapshot as JSON.
type MQTTSink struct {
	client   publisher
	topic    string
	qos      byte
	retained bool
}

// DialMQTT connects to the broker named in cfg.
func DialMQTT(cfg config.MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	return newMQTTSink(client, cfg), nil
}

func newMQTTSink(client publisher, cfg config.MQTTConfig) *MQTTSink {
	return &MQTTSink{
		client:   client,
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
	}
}

func (m *MQTTSink) Store(ctx context.Context, s solar.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, m.qos, m.retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", m.topic, err)
	}
	return nil
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
