// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

var (
	linkCheckDuration time.Duration
	linkCheckPoll     bool
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw connection stability",
	Long: `Open the transport and hold it for --duration, logging whatever arrives.
Useful for WiFi modules and bridges that drop idle connections: by default
nothing is sent, so the module sees a completely idle client. With --poll a
TELEMETRY_REQUEST is sent every poll interval instead.

Received bytes are fed through the frame decoder so the summary shows how
many complete frames arrived and the longest silence on the link.

Exit codes:
  0 - Connection stayed up for the whole duration
  1 - Connection dropped
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().DurationVar(&linkCheckDuration, "duration", 30*time.Second, "Test duration")
	linkCheckCmd.Flags().BoolVar(&linkCheckPoll, "poll", false, "Request telemetry while testing")
}

// linkReport accumulates what a link check observed.
type linkReport struct {
	start    time.Time
	lastData time.Time
	chunks   int
	bytes    int
	frames   int
	errors   int
	longest  time.Duration
}

func (r *linkReport) received(data []byte, d *protocol.Decoder) {
	now := time.Now()
	if gap := now.Sub(r.lastData); gap > r.longest {
		r.longest = gap
	}
	r.lastData = now
	r.chunks++
	r.bytes += len(data)

	frames, errs := d.Feed(data)
	r.frames += len(frames)
	r.errors += len(errs)
	for _, f := range frames {
		fmt.Printf("[%s] %s seq=%d\n", now.Format("15:04:05.000"), protocol.FormatMessageType(f.Type()), f.Seq())
	}
	if len(frames) == 0 {
		fmt.Printf("[%s] %d bytes: %x\n", now.Format("15:04:05.000"), len(data), data)
	}
}

func (r *linkReport) print(result string) {
	if gap := time.Since(r.lastData); gap > r.longest {
		r.longest = gap
	}
	fmt.Printf("\n--- Link Check ---\n")
	fmt.Printf("Duration:        %v\n", time.Since(r.start).Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", r.chunks)
	fmt.Printf("Bytes received:  %d\n", r.bytes)
	fmt.Printf("Frames decoded:  %d (%d decode errors)\n", r.frames, r.errors)
	fmt.Printf("Longest silence: %v\n", r.longest.Round(time.Millisecond))
	fmt.Printf("Result: %s\n", result)
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnection)
	}
	defer conn.Close()

	fmt.Printf("hottoh - Link Check\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %v, polling: %v\n\n", linkCheckDuration, linkCheckPoll)

	if linkCheckPoll {
		go requestLoop(ctx, conn, cfg.PollInterval)
	}

	dataCh := make(chan []byte, 100)
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errCh <- err
				return
			}
			if n > 0 {
				dataCh <- append([]byte(nil), buf[:n]...)
			}
		}
	}()

	decoder := protocol.NewDecoder()
	report := &linkReport{start: time.Now(), lastData: time.Now()}
	deadline := time.NewTimer(linkCheckDuration)
	defer deadline.Stop()
	heartbeat := time.NewTicker(5 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case data := <-dataCh:
			report.received(data, decoder)

		case err := <-errCh:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			report.print("FAILED (connection dropped)")
			os.Exit(exitTimeout)

		case <-heartbeat.C:
			fmt.Printf("[%s] link up, idle %v\n", time.Now().Format("15:04:05.000"),
				time.Since(report.lastData).Round(time.Second))

		case <-deadline.C:
			report.print("PASSED (connection stable)")
			return nil

		case <-ctx.Done():
			report.print("ABORTED")
			return nil
		}
	}
}
