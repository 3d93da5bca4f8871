// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package entity

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// HVAC modes
const (
	HVACHeat = "heat"
	HVACOff  = "off"
)

// Preset modes
const (
	PresetNone    = "none"
	PresetAway    = "away"
	PresetEco     = "eco"
	PresetComfort = "comfort"
)

// Climate limits
const (
	ClimateMinTemp = protocol.MinTemperature
	ClimateMaxTemp = protocol.MaxTemperature
	ClimateStep    = protocol.TemperatureStep
)

// Presets holds the target temperature of each preset. A zero value
// disables that preset.
type Presets struct {
	Away    float64 `mapstructure:"away" json:"away"`
	Eco     float64 `mapstructure:"eco" json:"eco"`
	Comfort float64 `mapstructure:"comfort" json:"comfort"`
}

// DefaultPresets are used when none are configured.
var DefaultPresets = Presets{Away: 15, Eco: 18, Comfort: 20}

func (p Presets) lookup(mode string) (float64, bool) {
	var t float64
	switch mode {
	case PresetAway:
		t = p.Away
	case PresetEco:
		t = p.Eco
	case PresetComfort:
		t = p.Comfort
	}
	return t, t > 0
}

// Climate is the thermostat view of the stove. Room 1 is the controlled
// zone and fan 1 drives the fan modes.
type Climate struct {
	Name     string  `json:"name"`
	UniqueID string  `json:"unique_id"`
	Presets  Presets `json:"presets"`

	mu     sync.Mutex
	preset string
}

// NewClimate creates the climate entity of the named stove.
func NewClimate(caps hottoh.Capabilities, presets Presets) *Climate {
	return &Climate{
		Name:     caps.Name,
		UniqueID: Domain + caps.Name,
		Presets:  presets,
		preset:   PresetNone,
	}
}

// CurrentTemperature is the room 1 reading.
func (c *Climate) CurrentTemperature(r StateReader) (float64, bool) {
	return readFloat(r, hottoh.RoomTemperature(protocol.SensorRoom1))
}

// TargetTemperature is the room 1 set point.
func (c *Climate) TargetTemperature(r StateReader) (float64, bool) {
	return readFloat(r, hottoh.SetRoomTemperature(protocol.SensorRoom1))
}

// HVACMode is heat while the stove reports mode "on", otherwise off.
func (c *Climate) HVACMode(r StateReader) string {
	if reading, ok := r.Get(hottoh.AttrMode); ok && reading.Value == hottoh.ModeOn {
		return HVACHeat
	}
	return HVACOff
}

// HVACModes lists the supported modes.
func (c *Climate) HVACModes() []string {
	return []string{HVACHeat, HVACOff}
}

// HVACAction is the derived heating/idle/off action.
func (c *Climate) HVACAction(r StateReader) string {
	if reading, ok := r.Get(hottoh.AttrAction); ok {
		if s, ok := reading.Value.(string); ok {
			return s
		}
	}
	return string(protocol.ActionOff)
}

// Icon follows the HVAC mode.
func (c *Climate) Icon(r StateReader) string {
	if c.HVACMode(r) == HVACHeat {
		return "mdi:fireplace"
	}
	return "mdi:fireplace-off"
}

// PresetModes lists "none" followed by every configured preset.
func (c *Climate) PresetModes() []string {
	modes := []string{PresetNone}
	for _, m := range []string{PresetAway, PresetEco, PresetComfort} {
		if _, ok := c.Presets.lookup(m); ok {
			modes = append(modes, m)
		}
	}
	return modes
}

// PresetMode returns the last preset applied.
func (c *Climate) PresetMode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preset
}

// SetTemperature sets the room 1 set point.
func (c *Climate) SetTemperature(ctx context.Context, cmd Commander, celsius float64) error {
	return cmd.Send(ctx, protocol.SetTemperature(protocol.SensorRoom1, celsius))
}

// SetHVACMode turns the stove on for heat and off for off.
func (c *Climate) SetHVACMode(ctx context.Context, cmd Commander, mode string) error {
	switch mode {
	case HVACHeat:
		return cmd.Send(ctx, protocol.SetPower(true))
	case HVACOff:
		return cmd.Send(ctx, protocol.SetPower(false))
	}
	return fmt.Errorf("unknown hvac mode %q", mode)
}

// SetPresetMode applies a preset's temperature. Away and eco also switch
// eco mode on; comfort switches it off. "none" only clears the selection.
func (c *Climate) SetPresetMode(ctx context.Context, cmd Commander, mode string) error {
	if mode != PresetNone {
		temp, ok := c.Presets.lookup(mode)
		if !ok {
			return fmt.Errorf("unknown preset %q", mode)
		}
		if err := c.SetTemperature(ctx, cmd, temp); err != nil {
			return err
		}
		if err := cmd.Send(ctx, protocol.SetEcoMode(mode != PresetComfort)); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.preset = mode
	c.mu.Unlock()
	return nil
}

// FanMode is fan 1's requested speed as a string.
func (c *Climate) FanMode(r StateReader) string {
	reading, ok := r.Get(hottoh.SetFanSpeed(1))
	if !ok {
		return ""
	}
	return fmt.Sprint(reading.Value)
}

// FanModes lists "0" (automatic) through "6".
func (c *Climate) FanModes() []string {
	modes := make([]string, 0, protocol.MaxFanSpeed+1)
	for i := protocol.MinFanSpeed; i <= protocol.MaxFanSpeed; i++ {
		modes = append(modes, strconv.Itoa(i))
	}
	return modes
}

// SetFanMode sets fan 1 to the given mode.
func (c *Climate) SetFanMode(ctx context.Context, cmd Commander, mode string) error {
	speed, err := strconv.Atoi(mode)
	if err != nil {
		return fmt.Errorf("invalid fan mode %q: %w", mode, err)
	}
	return cmd.Send(ctx, protocol.SetFanSpeed(1, speed))
}

func readFloat(r StateReader, a hottoh.Attribute) (float64, bool) {
	reading, ok := r.Get(a)
	if !ok {
		return 0, false
	}
	return hottoh.Snapshot{a: reading}.Float(a)
}
