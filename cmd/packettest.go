// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Send a ping request and wait for any valid frame until timeout.

This command connects over the configured transport and waits for a
complete frame that passes the CRC check. Bytes that do not form a frame are
skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking that the WiFi module or bridge is reachable and talking.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnection)
	}
	defer conn.Close()

	fmt.Printf("hottoh - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	if data, err := protocol.NewPingRequest(1).Encode(); err == nil {
		if _, err := conn.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(exitConnection)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(packetTestTimeout)*time.Second)
	defer cancel()
	frame, skipped, err := waitForFrame(ctx, conn)

	switch {
	case frame != nil:
		if skipped > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", protocol.FormatMessageType(frame.Type()), frame.Type())
		fmt.Printf("  Seq: %d\n", frame.Seq())
		fmt.Printf("  Length: %d bytes\n", frame.Length())
		fmt.Printf("  CRC: 0x%04X\n", frame.CRC())
		os.Exit(exitOK)
	case ctx.Err() != nil:
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(exitTimeout)
	default:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(exitConnection)
	}
	return nil
}

// waitForFrame reads until one valid frame arrives, the reader fails or ctx
// ends. It returns the number of bytes discarded before the frame.
func waitForFrame(ctx context.Context, r interface{ Read([]byte) (int, error) }) (*protocol.Frame, int, error) {
	type result struct {
		frame   *protocol.Frame
		skipped int
		err     error
	}
	done := make(chan result, 1)

	go func() {
		decoder := protocol.NewDecoder()
		buf := make([]byte, 128)
		skipped := 0
		for {
			n, err := r.Read(buf)
			if err != nil {
				done <- result{err: err}
				return
			}
			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					skipped++
					continue
				}
				if frame != nil {
					done <- result{frame: frame, skipped: skipped}
					return
				}
				if !decoder.InFrame() {
					skipped++
				}
			}
		}
	}()

	select {
	case res := <-done:
		return res.frame, res.skipped, res.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}
