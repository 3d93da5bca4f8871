// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package mqtt mirrors the stove's cached state onto an MQTT broker and
// turns messages on <topic>/set/<service> into stove commands.
//
// Topics, relative to the configured prefix:
//
//	state          retained JSON object of cached attributes
//	availability   retained "online" or "offline"
//	set/<service>  service call; the payload is the optional numeric value
//	result         JSON outcome of each service call
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/entity"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

const (
	Online  = "online"
	Offline = "offline"
)

// availabilityCheck is how often the connection state is re-published when
// the cache is quiet.
const availabilityCheck = time.Second

// Config selects the broker and topic prefix.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	// CallTimeout bounds each service call. Zero uses twice the default
	// command timeout.
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// Session is the part of *hottoh.Session the bridge needs.
type Session interface {
	IsConnected() bool
	Cache() *hottoh.Cache
	Capabilities() (hottoh.Capabilities, bool)
	Send(ctx context.Context, cmd protocol.Command) error
}

// Bridge publishes state and executes service calls, one at a time in
// arrival order.
type Bridge struct {
	cfg    Config
	client client
	sess   Session
	log    *zap.Logger
	calls  chan call
}

type call struct {
	service string
	value   float64
}

// Result is published after each service call.
type Result struct {
	Service string `json:"service"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Dial connects to the broker and returns a bridge for sess.
func Dial(cfg Config, sess Session) (*Bridge, error) {
	cfg = withDefaults(cfg)
	c, err := dialBroker(cfg, cfg.Topic+"/availability", []byte(Offline))
	if err != nil {
		return nil, err
	}
	return newBridge(cfg, c, sess), nil
}

func withDefaults(cfg Config) Config {
	cfg.Topic = strings.TrimSuffix(cfg.Topic, "/")
	if cfg.Topic == "" {
		cfg.Topic = "hottoh"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "hottoh"
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 2 * hottoh.DefaultCommandTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

const callQueueSize = 16

func newBridge(cfg Config, c client, sess Session) *Bridge {
	cfg = withDefaults(cfg)
	return &Bridge{
		cfg:    cfg,
		client: c,
		sess:   sess,
		log:    cfg.Logger.With(zap.String("topic", cfg.Topic)),
		calls:  make(chan call, callQueueSize),
	}
}

func (b *Bridge) topic(suffix string) string {
	return b.cfg.Topic + "/" + suffix
}

// Run publishes until ctx ends, then marks the stove offline and closes
// the broker connection.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.client.Close()

	if err := b.client.Subscribe(b.topic("set/+"), b.onSet); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.execute(ctx)
	}()

	ticker := time.NewTicker(availabilityCheck)
	defer ticker.Stop()

	var published uint64
	lastAvailability := ""
	for {
		version, changed := b.sess.Cache().Watch()
		if version != published {
			if err := b.publishState(); err != nil {
				b.log.Warn("state publish failed", zap.Error(err))
			} else {
				published = version
			}
		}
		if avail := b.availability(); avail != lastAvailability {
			if err := b.client.Publish(b.topic("availability"), []byte(avail), true); err != nil {
				b.log.Warn("availability publish failed", zap.Error(err))
			} else {
				lastAvailability = avail
			}
		}

		select {
		case <-ctx.Done():
			<-done
			_ = b.client.Publish(b.topic("availability"), []byte(Offline), true)
			return nil
		case <-changed:
		case <-ticker.C:
		}
	}
}

func (b *Bridge) availability() string {
	if b.sess.IsConnected() {
		return Online
	}
	return Offline
}

// StatePayload renders the cache as a flat JSON object.
func StatePayload(snap hottoh.Snapshot) ([]byte, error) {
	out := make(map[string]any, len(snap))
	for a, r := range snap {
		out[string(a)] = r.Value
	}
	return json.Marshal(out)
}

func (b *Bridge) publishState() error {
	payload, err := StatePayload(b.sess.Cache().Snapshot())
	if err != nil {
		return err
	}
	return b.client.Publish(b.topic("state"), payload, true)
}

func (b *Bridge) onSet(topic string, payload []byte) {
	service := strings.TrimPrefix(topic, b.topic("set/"))
	var value float64
	if text := strings.TrimSpace(string(payload)); text != "" {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			b.publishResult(Result{Service: service, Error: fmt.Sprintf("invalid value %q", text)})
			return
		}
		value = v
	}
	select {
	case b.calls <- call{service: service, value: value}:
	default:
		b.log.Warn("service call dropped, queue full", zap.String("service", service))
		b.publishResult(Result{Service: service, Error: "service queue full"})
	}
}

func (b *Bridge) execute(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-b.calls:
			b.publishResult(b.invoke(ctx, c))
		}
	}
}

func (b *Bridge) invoke(ctx context.Context, c call) Result {
	caps, ok := b.sess.Capabilities()
	if !ok {
		return Result{Service: c.service, Error: hottoh.ErrNotConnected.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	if err := entity.CallService(ctx, b.sess, caps, c.service, c.value); err != nil {
		b.log.Info("service call failed", zap.String("service", c.service), zap.Error(err))
		return Result{Service: c.service, Error: err.Error()}
	}
	b.log.Debug("service call done", zap.String("service", c.service))
	return Result{Service: c.service, OK: true}
}

func (b *Bridge) publishResult(r Result) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := b.client.Publish(b.topic("result"), payload, false); err != nil {
		b.log.Warn("result publish failed", zap.Error(err))
	}
}
