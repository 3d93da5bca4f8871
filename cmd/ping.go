// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure the round trip to the stove",
	Long: `Connect, then send PING_REQUEST frames through the command queue and wait
for PING_RESPONSE.

This is useful for verifying:
  - The transport is reachable and authenticated
  - The stove answers the handshake
  - Requests and responses flow in both directions

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	s, connInfo, err := OpenSession(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnection)
	}
	defer closeSession(s)

	fmt.Printf("hottoh - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(pingTimeout)*time.Second)
		rtt, err := s.Ping(ctx)
		cancel()
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			uptime := "unknown"
			if r, ok := s.Get(hottoh.AttrUptime); ok {
				if secs, ok := r.Value.(int); ok {
					uptime = formatUptime(uint64(secs) * 1000)
				}
			}
			fmt.Printf("PONG, uptime=%s, rtt=%v\n", uptime, rtt.Round(time.Millisecond))
			successCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(max(pingCount, 1))*100)

	if failCount > 0 {
		closeSession(s)
		os.Exit(exitTimeout)
	}
	return nil
}
