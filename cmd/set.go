// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

var setRoom int

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Send a command to the stove",
	Long: `Send one command and wait for the stove to confirm it.

Examples:
  hottoh set temperature 21.5
  hottoh set temperature 19 --room 2
  hottoh set power 3
  hottoh set fan 1 4
  hottoh set on
  hottoh set eco off`,
}

func init() {
	rootCmd.AddCommand(setCmd)

	temperatureCmd := &cobra.Command{
		Use:   "temperature <celsius>",
		Short: fmt.Sprintf("Set a room set point (%.0f-%.0f in %.1f steps)", protocol.MinTemperature, protocol.MaxTemperature, protocol.TemperatureStep),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			celsius, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid temperature %q", args[0])
			}
			return sendCommand(cmd, protocol.SetTemperature(setRoom, celsius))
		},
	}
	temperatureCmd.Flags().IntVar(&setRoom, "room", protocol.SensorRoom1, "Room sensor (1-3)")

	powerCmd := &cobra.Command{
		Use:   "power <level>",
		Short: fmt.Sprintf("Set the power level (%d-%d)", protocol.MinPowerLevel, protocol.MaxPowerLevel),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid power level %q", args[0])
			}
			return sendCommand(cmd, protocol.SetPowerLevel(level))
		},
	}

	fanCmd := &cobra.Command{
		Use:   "fan <fan> <speed>",
		Short: fmt.Sprintf("Set a fan speed (%d=auto, up to %d)", protocol.MinFanSpeed, protocol.MaxFanSpeed),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fan, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid fan %q", args[0])
			}
			speed, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid speed %q", args[1])
			}
			return sendCommand(cmd, protocol.SetFanSpeed(fan, speed))
		},
	}

	onCmd := &cobra.Command{
		Use:   "on",
		Short: "Turn the stove on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, protocol.SetPower(true))
		},
	}
	offCmd := &cobra.Command{
		Use:   "off",
		Short: "Turn the stove off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, protocol.SetPower(false))
		},
	}

	setCmd.AddCommand(temperatureCmd, powerCmd, fanCmd, onCmd, offCmd,
		toggleCmd("eco", "eco mode", protocol.SetEcoMode),
		toggleCmd("chrono", "the chrono schedule", protocol.SetChronoMode),
	)
}

func toggleCmd(name, what string, build func(bool) protocol.Command) *cobra.Command {
	return &cobra.Command{
		Use:       name + " on|off",
		Short:     "Turn " + what + " on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return sendCommand(cmd, build(on))
		},
	}
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// sendCommand validates cmd before connecting, then sends it and waits for
// confirmation.
func sendCommand(cmd *cobra.Command, c protocol.Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s, connInfo, err := OpenSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.Send(cmd.Context(), c); err != nil {
		return err
	}
	fmt.Printf("%s: %s confirmed\n", connInfo, c)
	return nil
}
