// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

// cacheBatchDelay groups bursts of telemetry into one redraw
const cacheBatchDelay = 50 * time.Millisecond

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling a HottoH stove",
	Long: `Monitor and control a HottoH stove from an interactive terminal UI.

Features:
  - Real-time telemetry display
  - On/off, set point, power level, eco, chrono and fan control
  - Frame statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the action list and the set point input. Arrow keys
navigate the action list and Enter runs the selected action.

Supports TCP, serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal; events go to its log instead.
	log = zap.NewNop()

	s, connInfo, err := newSession()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := initialControlModel(s, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	go keepConnected(ctx, s, func(state hottoh.ConnState, err error) {
		p.Send(connStateMsg{state: state, err: err})
	})
	go watchCache(ctx, s, p)

	_, err = p.Run()
	cancel()
	closeSession(s)
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// watchCache forwards cache changes to the TUI until ctx ends
func watchCache(ctx context.Context, s *hottoh.Session, p *tea.Program) {
	for {
		_, changed := s.Cache().Watch()
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(cacheBatchDelay):
		}
		p.Send(cacheChangedMsg{})
	}
}
