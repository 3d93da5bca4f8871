// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

var (
	statusJSON bool
	statusWait time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the stove's current telemetry",
	Long: `Connect, wait briefly for the first telemetry to arrive and print every
cached attribute.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print as JSON")
	statusCmd.Flags().DurationVar(&statusWait, "wait", 2*time.Second, "Time to collect telemetry after the handshake")
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, connInfo, err := OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeSession(s)

	waitForTelemetry(s, statusWait)
	snap := s.Snapshot()

	if statusJSON {
		out := make(map[string]any, len(snap))
		for a, r := range snap {
			out[string(a)] = r.Value
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("hottoh - Status\n")
	fmt.Printf("Connection: %s\n\n", connInfo)
	fmt.Print(formatSnapshot(snap))
	return nil
}

// waitForTelemetry blocks until the cache holds state data or wait passes.
func waitForTelemetry(s *hottoh.Session, wait time.Duration) {
	deadline := time.After(wait)
	for {
		version, changed := s.Cache().Watch()
		if _, ok := s.Get(hottoh.AttrStatus); ok && version > 0 {
			return
		}
		select {
		case <-changed:
		case <-deadline:
			return
		}
	}
}

// formatSnapshot renders a snapshot as aligned name/value lines, sorted by
// attribute name.
func formatSnapshot(snap hottoh.Snapshot) string {
	names := make([]string, 0, len(snap))
	width := 0
	for a := range snap {
		names = append(names, string(a))
		width = max(width, len(a))
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		a := hottoh.Attribute(name)
		value := fmt.Sprint(snap[a].Value)
		if a == hottoh.AttrUptime {
			if secs, ok := snap.Int(a); ok {
				value = formatUptime(uint64(secs) * 1000)
			}
		}
		fmt.Fprintf(&b, "  %-*s  %s\n", width, name, value)
	}
	return b.String()
}

// formatUptime renders milliseconds as a human-readable duration
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, p := range []struct {
		n    uint64
		unit string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	} {
		switch {
		case p.n == 1:
			parts = append(parts, "1 "+p.unit)
		case p.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d ms", ms)
	}
	return strings.Join(parts, ", ")
}
