// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import "fmt"

// Attribute names a telemetry value held in the state cache.
type Attribute string

// Fixed attributes
const (
	AttrIsOn          Attribute = "is_on"
	AttrMode          Attribute = "mode"
	AttrStatus        Attribute = "status"
	AttrAction        Attribute = "action"
	AttrEcoMode       Attribute = "eco_mode"
	AttrChronoMode    Attribute = "chrono_mode"
	AttrPowerLevel    Attribute = "power_level"
	AttrSetPowerLevel Attribute = "set_power_level"
	AttrSetMinPower   Attribute = "set_min_power_level"
	AttrSetMaxPower   Attribute = "set_max_power_level"
	AttrSmokeTemp     Attribute = "smoke_temperature"
	AttrSmokeFanSpeed Attribute = "speed_fan_smoke"
	AttrWaterTemp     Attribute = "water_temperature"
	AttrSetWaterTemp  Attribute = "set_water_temperature"
	AttrSetMinWater   Attribute = "set_min_water_temperature"
	AttrSetMaxWater   Attribute = "set_max_water_temperature"
	AttrWaterPump     Attribute = "water_pump"
	AttrName          Attribute = "name"
	AttrManufacturer  Attribute = "manufacturer"
	AttrModel         Attribute = "model"
	AttrFirmware      Attribute = "firmware"
	AttrUptime        Attribute = "uptime"
)

// Mode values held by AttrMode
const (
	ModeOn  = "on"
	ModeOff = "off"
)

// RoomTemperature is the measured temperature of room sensor n.
func RoomTemperature(n int) Attribute {
	return Attribute(fmt.Sprintf("temperature_room_%d", n))
}

// SetRoomTemperature is the set point of room sensor n.
func SetRoomTemperature(n int) Attribute {
	return Attribute(fmt.Sprintf("set_temperature_room_%d", n))
}

// SetMinRoomTemperature is the lowest accepted set point of room sensor n.
func SetMinRoomTemperature(n int) Attribute {
	return Attribute(fmt.Sprintf("set_min_temperature_room_%d", n))
}

// SetMaxRoomTemperature is the highest accepted set point of room sensor n.
func SetMaxRoomTemperature(n int) Attribute {
	return Attribute(fmt.Sprintf("set_max_temperature_room_%d", n))
}

// FanSpeed is the current speed of fan n.
func FanSpeed(n int) Attribute {
	return Attribute(fmt.Sprintf("speed_fan_%d", n))
}

// SetFanSpeed is the requested speed of fan n.
func SetFanSpeed(n int) Attribute {
	return Attribute(fmt.Sprintf("set_speed_fan_%d", n))
}

// AirExchange is the air exchange percentage of fan n.
func AirExchange(n int) Attribute {
	return Attribute(fmt.Sprintf("air_ex_%d", n))
}
