// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benlbrm/ha-hottoh-component/pkg/entity"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the stove's identity and fitted hardware",
	Long: `Connect, perform the INFO_REQUEST handshake and print what the stove
reports about itself: name, firmware, fans, room sensors, water sensor and
pump, followed by the entities and services a host would expose for it.

Exit codes:
  0 - Handshake completed
  2 - Connection or handshake error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Print as JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, connInfo, err := OpenSession(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnection)
	}
	defer closeSession(s)

	caps, _ := s.Capabilities()
	if infoJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"device":       entity.Device(caps),
			"capabilities": caps,
			"services":     entity.Services(caps),
		})
	}

	fmt.Printf("hottoh - Stove Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)
	fmt.Printf("  Name: %s\n", caps.Name)
	fmt.Printf("  Manufacturer: %s\n", caps.Manufacturer)
	fmt.Printf("  Model: %s\n", caps.Model)
	fmt.Printf("  Firmware: %s\n", caps.Firmware)
	fmt.Printf("  Fans: %d\n", caps.FanCount)
	fmt.Printf("  Room sensors:")
	for n := 1; n <= 3; n++ {
		if caps.HasRoomSensor(n) {
			fmt.Printf(" %d", n)
		}
	}
	fmt.Printf("\n")
	fmt.Printf("  Water sensor: %v\n", caps.HasWaterSensor())
	fmt.Printf("  Pump: %v\n", caps.HasPump())

	fmt.Printf("\nEntities:\n")
	for platform, entities := range entity.All(caps) {
		for _, e := range entities {
			fmt.Printf("  %-14s %s\n", platform, e.UniqueID)
		}
	}

	fmt.Printf("\nServices:\n")
	for _, svc := range entity.Services(caps) {
		arg := ""
		if svc.TakesValue {
			arg = " <value>"
		}
		fmt.Printf("  %s%s - %s\n", svc.Name, arg, svc.Description)
	}
	return nil
}
