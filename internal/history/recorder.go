// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

// stateCheck is how often the recorder looks for connection changes.
const stateCheck = time.Second

// Source is the part of *hottoh.Session the recorder reads.
type Source interface {
	State() hottoh.ConnState
	LastError() error
	Snapshot() hottoh.Snapshot
	Capabilities() (hottoh.Capabilities, bool)
}

// Recorder logs connection changes and snapshots the cache every interval.
type Recorder struct {
	store    *Store
	src      Source
	interval time.Duration
	log      *zap.Logger
}

func NewRecorder(store *Store, src Source, interval time.Duration, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Recorder{store: store, src: src, interval: interval, log: log}
}

// Run records until ctx ends.
func (r *Recorder) Run(ctx context.Context) {
	snapshots := time.NewTicker(r.interval)
	defer snapshots.Stop()
	checks := time.NewTicker(stateCheck)
	defer checks.Stop()

	last := hottoh.StateDisconnected
	for {
		select {
		case <-ctx.Done():
			return
		case <-checks.C:
			if cur := r.src.State(); cur != last {
				r.transition(ctx, last, cur)
				last = cur
			}
		case at := <-snapshots.C:
			if r.src.State() != hottoh.StateConnected {
				continue
			}
			if err := r.store.RecordSnapshot(ctx, at, r.src.Snapshot()); err != nil {
				r.log.Warn("snapshot not recorded", zap.Error(err))
			}
		}
	}
}

func (r *Recorder) transition(ctx context.Context, from, to hottoh.ConnState) {
	ev := Event{Meta: map[string]string{"from": from.String(), "to": to.String()}}
	switch to {
	case hottoh.StateConnected:
		ev.Kind = KindConnected
		ev.Message = "connected"
		if caps, ok := r.src.Capabilities(); ok {
			ev.Message = "connected to " + caps.Name
		}
	case hottoh.StateFailed:
		ev.Kind = KindFailed
		ev.Message = "link failed"
		if err := r.src.LastError(); err != nil {
			ev.Message = err.Error()
		}
	case hottoh.StateDisconnected:
		ev.Kind = KindDisconnected
		ev.Message = "disconnected"
	default:
		return
	}
	if err := r.store.Append(ctx, ev); err != nil {
		r.log.Warn("event not recorded", zap.String("kind", ev.Kind), zap.Error(err))
	}
}

// Command records the outcome of a command issued through an outer surface.
func (r *Recorder) Command(ctx context.Context, name string, value float64, err error) {
	ev := Event{
		Kind:    KindCommand,
		Message: name,
		Meta:    map[string]any{"value": value},
	}
	if err != nil {
		ev.Kind = KindCommandError
		ev.Meta = map[string]any{"value": value, "error": err.Error()}
	}
	if err := r.store.Append(ctx, ev); err != nil {
		r.log.Warn("event not recorded", zap.String("kind", ev.Kind), zap.Error(err))
	}
}
