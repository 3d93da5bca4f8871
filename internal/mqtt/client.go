// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// client is the slice of a broker connection the bridge uses.
type client interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, cb func(topic string, payload []byte)) error
	Close()
}

type pahoClient struct {
	client paho.Client
	mu     sync.Mutex
	subs   map[string]func(string, []byte)
}

// dialBroker connects to cfg.Broker. The broker publishes willPayload on
// willTopic if the connection drops without a clean close.
func dialBroker(cfg Config, willTopic string, willPayload []byte) (*pahoClient, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetBinaryWill(willTopic, willPayload, 1, true)

	pc := &pahoClient{subs: make(map[string]func(string, []byte))}
	opts.OnConnect = func(_ paho.Client) {
		pc.resubscribeAll()
	}
	c := paho.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	pc.client = c
	return pc, nil
}

func (c *pahoClient) Publish(topic string, payload []byte, retained bool) error {
	if token := c.client.Publish(topic, 1, retained, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (c *pahoClient) Subscribe(topic string, cb func(string, []byte)) error {
	c.mu.Lock()
	c.subs[topic] = cb
	c.mu.Unlock()
	return c.subscribe(topic, cb)
}

func (c *pahoClient) subscribe(topic string, cb func(string, []byte)) error {
	handler := func(_ paho.Client, msg paho.Message) {
		cb(msg.Topic(), msg.Payload())
	}
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (c *pahoClient) resubscribeAll() {
	// OnConnect also fires for the first connection, before client is set
	if c.client == nil {
		return
	}
	c.mu.Lock()
	subs := make(map[string]func(string, []byte), len(c.subs))
	for topic, cb := range c.subs {
		subs[topic] = cb
	}
	c.mu.Unlock()
	for topic, cb := range subs {
		_ = c.subscribe(topic, cb)
	}
}

func (c *pahoClient) Close() {
	c.client.Disconnect(250)
}
