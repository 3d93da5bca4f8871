// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package entity

import (
	"context"
	"fmt"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// Sensors lists the sensor entities for the fitted hardware. Optional room
// and water sensors appear only when the handshake reports them.
func Sensors(caps hottoh.Capabilities) []Entity {
	out := []Entity{
		newEntity(caps.Name, hottoh.AttrAction),
		newEntity(caps.Name, hottoh.AttrSmokeTemp),
		newEntity(caps.Name, hottoh.AttrSmokeFanSpeed),
	}
	for n := 1; n <= 3; n++ {
		if caps.HasRoomSensor(n) {
			out = append(out, newEntity(caps.Name, hottoh.RoomTemperature(n)))
		}
	}
	if caps.HasWaterSensor() {
		out = append(out, newEntity(caps.Name, hottoh.AttrWaterTemp))
	}
	for n := 1; n <= caps.FanCount; n++ {
		out = append(out,
			newEntity(caps.Name, hottoh.FanSpeed(n)),
			newEntity(caps.Name, hottoh.AirExchange(n)),
		)
	}
	return append(out, newEntity(caps.Name, hottoh.AttrPowerLevel))
}

// BinarySensors lists the binary sensors; only the pump, when fitted.
func BinarySensors(caps hottoh.Capabilities) []Entity {
	if !caps.HasPump() {
		return nil
	}
	return []Entity{newEntity(caps.Name, hottoh.AttrWaterPump)}
}

// Switches lists the power, eco and chrono switches.
func Switches(caps hottoh.Capabilities) []Entity {
	return []Entity{
		newEntity(caps.Name, hottoh.AttrIsOn),
		newEntity(caps.Name, hottoh.AttrEcoMode),
		newEntity(caps.Name, hottoh.AttrChronoMode),
	}
}

// Turn drives a switch entity.
func (e Entity) Turn(ctx context.Context, c Commander, on bool) error {
	if e.Platform != PlatformSwitch {
		return fmt.Errorf("%s is not a switch", e.Attribute)
	}
	switch e.Attribute {
	case hottoh.AttrIsOn:
		return c.Send(ctx, protocol.SetPower(on))
	case hottoh.AttrEcoMode:
		return c.Send(ctx, protocol.SetEcoMode(on))
	case hottoh.AttrChronoMode:
		return c.Send(ctx, protocol.SetChronoMode(on))
	}
	return fmt.Errorf("no command for switch %s", e.Attribute)
}

// All lists every entity for the fitted hardware, grouped by platform.
func All(caps hottoh.Capabilities) map[Platform][]Entity {
	return map[Platform][]Entity{
		PlatformSensor:       Sensors(caps),
		PlatformBinarySensor: BinarySensors(caps),
		PlatformSwitch:       Switches(caps),
	}
}
