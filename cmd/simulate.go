// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/internal/simulator"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

var (
	simListen string
	simTick   time.Duration
	simName   string
	simFans   int
	simRooms  uint8
	simWater  bool
	simNoise  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated stove",
	Long: `Listen for TCP connections and answer them like a HottoH WiFi module.

The simulated stove runs its own start-up and shutdown cycle, so the other
commands can be tried without hardware:

  hottoh simulate --listen 127.0.0.1:5001 &
  hottoh --host 127.0.0.1 control`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simListen, "listen", fmt.Sprintf("127.0.0.1:%d", hottoh.DefaultPort), "TCP listen address")
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Second, "Simulation step and telemetry push interval")
	simulateCmd.Flags().StringVar(&simName, "name", simulator.DefaultInfo.Name, "Stove name reported in the handshake")
	simulateCmd.Flags().IntVar(&simFans, "fans", simulator.DefaultInfo.FanCount, "Number of fans (1-3)")
	simulateCmd.Flags().Uint8Var(&simRooms, "rooms", simulator.DefaultInfo.RoomSensors, "Room sensor bitmask (bit 0 = room 1)")
	simulateCmd.Flags().BoolVar(&simWater, "water", false, "Fit a water sensor and pump")
	simulateCmd.Flags().BoolVar(&simNoise, "noise", false, "Prefix replies with junk bytes and a corrupted frame")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simFans < 1 || simFans > protocol.MaxFanIndex {
		return fmt.Errorf("fans must be 1-%d", protocol.MaxFanIndex)
	}
	if simRooms == 0 || simRooms > 0b111 {
		return fmt.Errorf("rooms must be a bitmask between 1 and 7")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	info := simulator.DefaultInfo
	info.Name = simName
	info.FanCount = simFans
	info.RoomSensors = simRooms
	info.WaterSensor = simWater
	info.Pump = simWater

	stove := simulator.New(simulator.Config{
		Info:   info,
		Noise:  simNoise,
		Logger: log,
	})
	addr, err := stove.Listen(ctx, simListen)
	if err != nil {
		return err
	}
	log.Info("simulator ready", zap.Stringer("addr", addr), zap.String("name", info.Name), zap.Int("fans", info.FanCount))

	stove.Run(ctx, simTick)
	stove.Wait()
	return nil
}
