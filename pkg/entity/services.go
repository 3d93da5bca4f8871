// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// ErrUnknownService is returned for a service the stove does not expose.
var ErrUnknownService = errors.New("unknown service")

// Service is a named action a host can invoke. Services with TakesValue
// read the "value" field of the call.
type Service struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TakesValue  bool   `json:"takes_value"`

	build func(value float64) protocol.Command
}

// Call sends the service's command through c.
func (s Service) Call(ctx context.Context, c Commander, value float64) error {
	return c.Send(ctx, s.build(value))
}

// Services lists the services for the fitted hardware. A set_speed_fan_N
// service exists for each fan the stove reports.
func Services(caps hottoh.Capabilities) []Service {
	out := []Service{
		{
			Name: "set_temperature", Description: "Set the room 1 set point", TakesValue: true,
			build: func(v float64) protocol.Command { return protocol.SetTemperature(protocol.SensorRoom1, v) },
		},
		{
			Name: "set_power_level", Description: "Set the combustion power level", TakesValue: true,
			build: func(v float64) protocol.Command { return protocol.Command{Kind: protocol.CmdSetPowerLevel, Value: v} },
		},
		{
			Name: "eco_mode_turn_on", Description: "Turn eco mode on",
			build: func(float64) protocol.Command { return protocol.SetEcoMode(true) },
		},
		{
			Name: "eco_mode_turn_off", Description: "Turn eco mode off",
			build: func(float64) protocol.Command { return protocol.SetEcoMode(false) },
		},
		{
			Name: "chrono_mode_turn_on", Description: "Turn the chrono schedule on",
			build: func(float64) protocol.Command { return protocol.SetChronoMode(true) },
		},
		{
			Name: "chrono_mode_turn_off", Description: "Turn the chrono schedule off",
			build: func(float64) protocol.Command { return protocol.SetChronoMode(false) },
		},
		{
			Name: "turn_on", Description: "Turn the stove on",
			build: func(float64) protocol.Command { return protocol.SetPower(true) },
		},
		{
			Name: "turn_off", Description: "Turn the stove off",
			build: func(float64) protocol.Command { return protocol.SetPower(false) },
		},
	}
	for n := 1; n <= caps.FanCount; n++ {
		fan := n
		out = append(out, Service{
			Name:        fmt.Sprintf("set_speed_fan_%d", fan),
			Description: fmt.Sprintf("Set the speed of fan %d (0 is automatic)", fan),
			TakesValue:  true,
			build: func(v float64) protocol.Command {
				return protocol.Command{Kind: protocol.CmdSetFanSpeed, Target: fan, Value: v}
			},
		})
	}
	return out
}

// FindService looks up an exposed service by name.
func FindService(caps hottoh.Capabilities, name string) (Service, error) {
	for _, s := range Services(caps) {
		if s.Name == name {
			return s, nil
		}
	}
	return Service{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
}

// CallService invokes the named service.
func CallService(ctx context.Context, c Commander, caps hottoh.Capabilities, name string, value float64) error {
	s, err := FindService(caps, name)
	if err != nil {
		return err
	}
	return s.Call(ctx, c, value)
}
