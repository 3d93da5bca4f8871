// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

var rawLogPassive bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display stove frames as they arrive.

Each frame is shown with timestamp, message type, sequence number and decoded
payload. Unless --passive is given, an info request is sent on connect and a
telemetry request every poll interval, so the stove has something to say.

Supports TCP, serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogPassive, "passive", false, "Only listen; never send requests")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("hottoh - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if !rawLogPassive {
		go requestLoop(ctx, conn, cfg.PollInterval)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	decoder := protocol.NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Info("connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(protocol.FormatFrame(frame))
			}
		}
	}
}

// requestLoop sends an info request, then a telemetry request every
// interval until ctx ends. A non-positive interval sends only the info
// request.
func requestLoop(ctx context.Context, conn hottoh.Conn, interval time.Duration) {
	var seq uint16 = 1
	send := func(f *protocol.Frame) bool {
		data, err := f.Encode()
		if err == nil {
			_, err = conn.Write(data)
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("request not sent", zap.String("type", protocol.FormatMessageType(f.Type())), zap.Error(err))
			}
			return false
		}
		seq++
		return true
	}

	if !send(protocol.NewInfoRequest(seq)) || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if !send(protocol.NewTelemetryRequest(seq)) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
