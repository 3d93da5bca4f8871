// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

// timeLayout is SQLite's TIMESTAMP text format.
const timeLayout = "2006-01-02 15:04:05"

// Event kinds
const (
	KindConnected    = "CONNECTED"
	KindDisconnected = "DISCONNECTED"
	KindFailed       = "FAILED"
	KindCommand      = "COMMAND"
	KindCommandError = "COMMAND_ERROR"
)

// Event is one entry in the session log.
type Event struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	Meta       any       `json:"meta,omitempty"`
}

// Snapshot is the state cache at one point in time.
type Snapshot struct {
	ID      string         `json:"id"`
	TakenAt time.Time      `json:"taken_at"`
	State   map[string]any `json:"state"`
}

// Store reads and writes the history tables.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Append inserts e, filling in the id and time when they are empty.
func (s *Store) Append(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta *string
	if e.Meta != nil {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("encode event meta: %w", err)
		}
		m := string(b)
		meta = &m
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stove_events (id, occurred_at, kind, message, meta)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.ID,
		e.OccurredAt.UTC().Format(timeLayout),
		strings.ToUpper(strings.TrimSpace(e.Kind)),
		e.Message,
		meta,
	)
	return err
}

// Events returns events in [from, to], optionally of one kind, oldest first.
// Zero times leave that end open.
func (s *Store) Events(ctx context.Context, from, to time.Time, kind string) ([]Event, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC().Format(timeLayout))
	}
	if kind = strings.ToUpper(strings.TrimSpace(kind)); kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, kind)
	}

	q := `SELECT id, occurred_at, kind, message, meta FROM stove_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0, 32)
	for rows.Next() {
		var (
			ev   Event
			meta sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.OccurredAt, &ev.Kind, &ev.Message, &meta); err != nil {
			return nil, err
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		if meta.Valid && meta.String != "" {
			var v any
			if err := json.Unmarshal([]byte(meta.String), &v); err == nil {
				ev.Meta = v
			} else {
				ev.Meta = meta.String
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecordSnapshot stores snap as taken at the given time.
func (s *Store) RecordSnapshot(ctx context.Context, at time.Time, snap hottoh.Snapshot) error {
	state := make(map[string]any, len(snap))
	for a, r := range snap {
		state[string(a)] = r.Value
	}
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stove_snapshots (id, taken_at, state)
		VALUES (?, ?, ?)
	`, uuid.NewString(), at.UTC().Format(timeLayout), string(b))
	return err
}

// Snapshots returns up to limit snapshots, newest first.
func (s *Store) Snapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, taken_at, state FROM stove_snapshots ORDER BY taken_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap  Snapshot
			state string
		)
		if err := rows.Scan(&snap.ID, &snap.TakenAt, &state); err != nil {
			return nil, err
		}
		snap.TakenAt = snap.TakenAt.UTC()
		if err := json.Unmarshal([]byte(state), &snap.State); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
