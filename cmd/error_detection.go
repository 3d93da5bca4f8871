// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track frame errors, malformed data, and anomalous values with statistics.

This command validates each frame and detects:
  - CRC errors and decode failures
  - Malformed CBOR payloads and missing fields
  - Anomalous telemetry values (temperatures, fan speeds, power levels)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Telemetry is requested every poll interval so a quiet stove still produces
traffic. Periodic statistics summaries are printed at a configurable interval.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printPingResponse prints a ping response with uptime
func printPingResponse(frame *protocol.Frame) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	uptime, ok := protocol.GetMapUint(frame.PayloadMap(), 0)
	if !ok {
		fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m missing uptime\n\n", timestamp)
		return
	}
	fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m stove uptime: %s\n\n", timestamp, formatUptime(uptime))
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(frame *protocol.Frame, errors []protocol.ValidationError) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	msgType := protocol.FormatMessageType(frame.Type())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X) seq=%d\n", timestamp, msgType, frame.Type(), frame.Seq())
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case protocol.AnomalyMissingField, protocol.AnomalyDecodeError:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		case protocol.AnomalyInvalidTemp, protocol.AnomalyInvalidSpeed, protocol.AnomalyInvalidValue, protocol.AnomalyInvalidCount:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
		for k, v := range err.Details {
			fmt.Printf("    %s=%v\n", k, v)
		}
	}

	fmt.Print(protocol.FormatPayloadMap(frame.Type(), frame.PayloadMap()))
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("hottoh - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	go requestLoop(ctx, conn, cfg.PollInterval)

	decoder := protocol.NewDecoder()
	stats := protocol.NewStatistics()

	// Sync tracking - ignore decode errors until first valid frame
	synchronized := false
	invalidBytesBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(max(statsInterval, 1)) * time.Second)
	defer statsTicker.Stop()

	readBuf := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				readErr <- err
				return
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			readBuf <- data
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.String())
			return fmt.Errorf("read: %w", err)

		case data := <-readBuf:
			for _, b := range data {
				frame, decodeErr := decoder.DecodeByte(b)

				if decodeErr != nil {
					if synchronized {
						stats.Update(nil, decodeErr, nil)
						printDecodeError(decodeErr)
					} else {
						invalidBytesBeforeSync++
					}
				} else if frame != nil {
					if !synchronized {
						synchronized = true
						if invalidBytesBeforeSync > 0 {
							fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", invalidBytesBeforeSync)
						} else {
							fmt.Printf("[SYNC] Synchronized\n\n")
						}
					}

					validationErrors := protocol.ValidateFrame(frame)
					stats.Update(frame, nil, validationErrors)

					if len(validationErrors) > 0 {
						printValidationErrors(frame, validationErrors)
					} else if frame.Type() == protocol.MsgPingResponse {
						printPingResponse(frame)
					} else if showAll {
						fmt.Print(protocol.FormatFrame(frame))
					}
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
