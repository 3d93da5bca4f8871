// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package entity maps the stove's cached attributes onto the entities a
// home automation host exposes: sensors, binary sensors, switches, one
// climate device and a set of services.
//
// Descriptors come from a static table keyed by attribute, so a host can
// render any attribute without knowing the stove model.
package entity

import (
	"context"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// Domain prefixes unique ids and device identifiers.
const Domain = "hottoh"

// Platform is the kind of entity a descriptor is exposed as.
type Platform string

const (
	PlatformSensor       Platform = "sensor"
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformSwitch       Platform = "switch"
	PlatformClimate      Platform = "climate"
)

// Device classes and units
const (
	ClassTemperature = "temperature"
	ClassPowerFactor = "power_factor"

	UnitCelsius    = "°C"
	UnitPercentage = "%"
	UnitRPM        = "rpm"
)

// StateReader is the read side of a session. *hottoh.Session satisfies it.
type StateReader interface {
	Get(a hottoh.Attribute) (hottoh.Reading, bool)
	IsConnected() bool
}

// Commander is the write side of a session. *hottoh.Session satisfies it.
type Commander interface {
	Send(ctx context.Context, cmd protocol.Command) error
}

// Descriptor is the static description of one attribute. Set, Min and Max
// name companion attributes reported as extra state when present.
type Descriptor struct {
	Attribute   hottoh.Attribute `json:"attribute"`
	Platform    Platform         `json:"platform"`
	Icon        string           `json:"icon,omitempty"`
	DeviceClass string           `json:"device_class,omitempty"`
	Unit        string           `json:"unit,omitempty"`
	Set         hottoh.Attribute `json:"set,omitempty"`
	Min         hottoh.Attribute `json:"min,omitempty"`
	Max         hottoh.Attribute `json:"max,omitempty"`
}

var descriptors = buildDescriptors()

func buildDescriptors() map[hottoh.Attribute]Descriptor {
	table := []Descriptor{
		{Attribute: hottoh.AttrAction, Platform: PlatformSensor, Icon: "mdi:fire"},
		{Attribute: hottoh.AttrSmokeTemp, Platform: PlatformSensor, Icon: "mdi:smoke", DeviceClass: ClassTemperature, Unit: UnitCelsius},
		{Attribute: hottoh.AttrSmokeFanSpeed, Platform: PlatformSensor, Icon: "mdi:fan", Unit: UnitRPM},
		{
			Attribute: hottoh.AttrWaterTemp, Platform: PlatformSensor, Icon: "mdi:water-boiler",
			DeviceClass: ClassTemperature, Unit: UnitCelsius,
			Set: hottoh.AttrSetWaterTemp, Min: hottoh.AttrSetMinWater, Max: hottoh.AttrSetMaxWater,
		},
		{
			Attribute: hottoh.AttrPowerLevel, Platform: PlatformSensor, Icon: "mdi:fan",
			DeviceClass: ClassPowerFactor, Unit: UnitPercentage,
			Set: hottoh.AttrSetPowerLevel, Min: hottoh.AttrSetMinPower, Max: hottoh.AttrSetMaxPower,
		},
		{Attribute: hottoh.AttrWaterPump, Platform: PlatformBinarySensor, Icon: "mdi:pump"},
		{Attribute: hottoh.AttrIsOn, Platform: PlatformSwitch, Icon: "mdi:fireplace"},
		{Attribute: hottoh.AttrEcoMode, Platform: PlatformSwitch, Icon: "mdi:leaf"},
		{Attribute: hottoh.AttrChronoMode, Platform: PlatformSwitch, Icon: "mdi:calendar-clock"},
	}
	// Rooms and fans share the 1-3 index range
	for n := 1; n <= protocol.MaxFanIndex; n++ {
		table = append(table,
			Descriptor{
				Attribute: hottoh.RoomTemperature(n), Platform: PlatformSensor, Icon: "mdi:thermometer",
				DeviceClass: ClassTemperature, Unit: UnitCelsius,
				Set: hottoh.SetRoomTemperature(n), Min: hottoh.SetMinRoomTemperature(n), Max: hottoh.SetMaxRoomTemperature(n),
			},
			Descriptor{
				Attribute: hottoh.FanSpeed(n), Platform: PlatformSensor, Icon: "mdi:fan",
				DeviceClass: ClassPowerFactor, Unit: UnitPercentage, Set: hottoh.SetFanSpeed(n),
			},
			Descriptor{
				Attribute: hottoh.AirExchange(n), Platform: PlatformSensor, Icon: "mdi:air-filter",
				DeviceClass: ClassPowerFactor, Unit: UnitPercentage,
			},
		)
	}

	m := make(map[hottoh.Attribute]Descriptor, len(table))
	for _, d := range table {
		m[d.Attribute] = d
	}
	return m
}

// Lookup returns the descriptor for a.
func Lookup(a hottoh.Attribute) (Descriptor, bool) {
	d, ok := descriptors[a]
	return d, ok
}

// Entity is one exposed value of a named device.
type Entity struct {
	Descriptor
	Name     string `json:"name"`
	UniqueID string `json:"unique_id"`
}

func newEntity(device string, a hottoh.Attribute) Entity {
	d, ok := Lookup(a)
	if !ok {
		d = Descriptor{Attribute: a, Platform: PlatformSensor}
	}
	return Entity{
		Descriptor: d,
		Name:       device + " " + string(a),
		UniqueID:   device + "_" + string(a),
	}
}

// State returns the cached value of the entity's attribute.
func (e Entity) State(r StateReader) (any, bool) {
	reading, ok := r.Get(e.Attribute)
	if !ok {
		return nil, false
	}
	return reading.Value, true
}

// Attributes returns the set, min and max companions that are cached.
func (e Entity) Attributes(r StateReader) map[string]any {
	attrs := make(map[string]any)
	for key, a := range map[string]hottoh.Attribute{
		"set_value": e.Set,
		"min_value": e.Min,
		"max_value": e.Max,
	} {
		if a == "" {
			continue
		}
		if reading, ok := r.Get(a); ok {
			attrs[key] = reading.Value
		}
	}
	return attrs
}

// Available reports whether the session behind r is connected.
func (e Entity) Available(r StateReader) bool {
	return r.IsConnected()
}

// IconFor returns the icon for the entity's current state. The power switch
// shows an unlit fireplace while the stove is off.
func (e Entity) IconFor(r StateReader) string {
	if e.Attribute == hottoh.AttrIsOn {
		if v, ok := e.State(r); ok && v == false {
			return "mdi:fireplace-off"
		}
	}
	return e.Icon
}

// DeviceInfo links entities to the physical stove.
type DeviceInfo struct {
	Identifiers  [][2]string `json:"identifiers"`
	Name         string      `json:"name"`
	SWVersion    string      `json:"sw_version"`
	Model        string      `json:"model"`
	Manufacturer string      `json:"manufacturer"`
}

// Device builds the device record from the handshake.
func Device(caps hottoh.Capabilities) DeviceInfo {
	model := caps.Model
	if model == "" {
		model = caps.Manufacturer
	}
	return DeviceInfo{
		Identifiers:  [][2]string{{Domain, caps.Name}},
		Name:         caps.Name,
		SWVersion:    caps.Firmware,
		Model:        model,
		Manufacturer: caps.Manufacturer,
	}
}
