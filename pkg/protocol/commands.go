// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"fmt"
	"math"
)

// CommandKind identifies a state-changing request to the stove.
type CommandKind int

// Command kinds
const (
	CmdSetTemperature CommandKind = iota + 1
	CmdSetPowerLevel
	CmdSetFanSpeed
	CmdSetPower
	CmdSetEcoMode
	CmdSetChronoMode
)

var commandNames = map[CommandKind]string{
	CmdSetTemperature: "set_temperature",
	CmdSetPowerLevel:  "set_power_level",
	CmdSetFanSpeed:    "set_speed_fan",
	CmdSetPower:       "set_power",
	CmdSetEcoMode:     "set_eco_mode",
	CmdSetChronoMode:  "set_chrono_mode",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// MsgType returns the wire message type for the command kind.
func (k CommandKind) MsgType() uint8 {
	switch k {
	case CmdSetTemperature:
		return MsgSetTemperature
	case CmdSetPowerLevel:
		return MsgSetPowerLevel
	case CmdSetFanSpeed:
		return MsgSetFanSpeed
	case CmdSetPower:
		return MsgSetPower
	case CmdSetEcoMode:
		return MsgSetEcoMode
	case CmdSetChronoMode:
		return MsgSetChronoMode
	}
	return 0
}

// Command is a validated-on-encode request to change stove state.
type Command struct {
	Kind CommandKind
	// Target is the room sensor for CmdSetTemperature or the fan index
	// for CmdSetFanSpeed.
	Target int
	// Value is degrees Celsius, power level, or fan speed.
	Value float64
	// Enabled is the requested state for the on/off commands.
	Enabled bool
}

// SetTemperature requests a new set point for a room sensor.
func SetTemperature(room int, celsius float64) Command {
	return Command{Kind: CmdSetTemperature, Target: room, Value: celsius}
}

// SetPowerLevel requests a new combustion power level.
func SetPowerLevel(level int) Command {
	return Command{Kind: CmdSetPowerLevel, Value: float64(level)}
}

// SetFanSpeed requests a speed for fan 1-3. Speed 0 is automatic.
func SetFanSpeed(fan, speed int) Command {
	return Command{Kind: CmdSetFanSpeed, Target: fan, Value: float64(speed)}
}

// SetPower turns the stove on or off.
func SetPower(on bool) Command {
	return Command{Kind: CmdSetPower, Enabled: on}
}

// SetEcoMode toggles eco mode.
func SetEcoMode(on bool) Command {
	return Command{Kind: CmdSetEcoMode, Enabled: on}
}

// SetChronoMode toggles the weekly chrono schedule.
func SetChronoMode(on bool) Command {
	return Command{Kind: CmdSetChronoMode, Enabled: on}
}

func (c Command) String() string {
	switch c.Kind {
	case CmdSetTemperature:
		return fmt.Sprintf("%s(room=%d, %.1f)", c.Kind, c.Target, c.Value)
	case CmdSetFanSpeed:
		return fmt.Sprintf("%s(fan=%d, %d)", c.Kind, c.Target, int(c.Value))
	case CmdSetPowerLevel:
		return fmt.Sprintf("%s(%d)", c.Kind, int(c.Value))
	default:
		return fmt.Sprintf("%s(%t)", c.Kind, c.Enabled)
	}
}

func isWhole(v float64) bool {
	return v == math.Trunc(v)
}

// Validate checks the command against the ranges the stove accepts.
func (c Command) Validate() error {
	switch c.Kind {
	case CmdSetTemperature:
		if c.Target < SensorRoom1 || c.Target > SensorRoom3 {
			return outOfRange("room", c.Target, "room must be %d-%d", SensorRoom1, SensorRoom3)
		}
		if math.IsNaN(c.Value) || c.Value < MinTemperature || c.Value > MaxTemperature {
			return outOfRange("temperature", c.Value, "must be %.1f-%.1f", MinTemperature, MaxTemperature)
		}
		if !isWhole(c.Value / TemperatureStep) {
			return outOfRange("temperature", c.Value, "must be a multiple of %.1f", TemperatureStep)
		}
	case CmdSetPowerLevel:
		if !isWhole(c.Value) || c.Value < MinPowerLevel || c.Value > MaxPowerLevel {
			return outOfRange("power_level", c.Value, "must be an integer %d-%d", MinPowerLevel, MaxPowerLevel)
		}
	case CmdSetFanSpeed:
		if c.Target < MinFanIndex || c.Target > MaxFanIndex {
			return outOfRange("fan", c.Target, "fan must be %d-%d", MinFanIndex, MaxFanIndex)
		}
		if !isWhole(c.Value) || c.Value < MinFanSpeed || c.Value > MaxFanSpeed {
			return outOfRange("speed", c.Value, "must be an integer %d-%d", MinFanSpeed, MaxFanSpeed)
		}
	case CmdSetPower, CmdSetEcoMode, CmdSetChronoMode:
	default:
		return &EncodeError{Field: "kind", Value: int(c.Kind), Err: fmt.Errorf("unknown command kind")}
	}
	return nil
}

// Frame validates the command and builds the frame that carries it.
func (c Command) Frame(seq uint16) (*Frame, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var payload map[int]any
	switch c.Kind {
	case CmdSetTemperature:
		payload = map[int]any{0: uint64(c.Target), 1: Tenths(c.Value)}
	case CmdSetPowerLevel:
		payload = map[int]any{0: uint64(c.Value)}
	case CmdSetFanSpeed:
		payload = map[int]any{0: uint64(c.Target), 1: uint64(c.Value)}
	default:
		payload = map[int]any{0: c.Enabled}
	}
	return NewFrame(seq, c.Kind.MsgType(), payload), nil
}

// ParseCommand recovers the Command carried by a command frame.
func ParseCommand(f *Frame) (Command, error) {
	m := f.PayloadMap()
	var cmd Command
	switch f.Type() {
	case MsgSetTemperature:
		room, ok1 := GetMapUint(m, 0)
		temp, ok2 := GetMapTenths(m, 1)
		if !ok1 || !ok2 {
			return cmd, malformed("SET_TEMPERATURE missing fields")
		}
		cmd = SetTemperature(int(room), temp)
	case MsgSetPowerLevel:
		level, ok := GetMapUint(m, 0)
		if !ok {
			return cmd, malformed("SET_POWER_LEVEL missing level")
		}
		cmd = SetPowerLevel(int(level))
	case MsgSetFanSpeed:
		fan, ok1 := GetMapUint(m, 0)
		speed, ok2 := GetMapUint(m, 1)
		if !ok1 || !ok2 {
			return cmd, malformed("SET_FAN_SPEED missing fields")
		}
		cmd = SetFanSpeed(int(fan), int(speed))
	case MsgSetPower, MsgSetEcoMode, MsgSetChronoMode:
		on, ok := GetMapBool(m, 0)
		if !ok {
			return cmd, malformed("%s missing state", FormatMessageType(f.Type()))
		}
		kind := map[uint8]CommandKind{
			MsgSetPower:      CmdSetPower,
			MsgSetEcoMode:    CmdSetEcoMode,
			MsgSetChronoMode: CmdSetChronoMode,
		}[f.Type()]
		cmd = Command{Kind: kind, Enabled: on}
	default:
		return cmd, malformed("not a command frame: 0x%02X", f.Type())
	}
	return cmd, cmd.Validate()
}

// Request builders

// NewInfoRequest creates an INFO_REQUEST frame (0x10).
// The stove answers with DEVICE_INFO, which completes the handshake.
func NewInfoRequest(seq uint16) *Frame {
	return NewFrame(seq, MsgInfoRequest, nil)
}

// NewTelemetryRequest creates a TELEMETRY_REQUEST frame (0x11).
// The stove answers with one frame per telemetry group.
func NewTelemetryRequest(seq uint16) *Frame {
	return NewFrame(seq, MsgTelemetryRequest, nil)
}

// NewPingRequest creates a PING_REQUEST frame (0x1F).
func NewPingRequest(seq uint16) *Frame {
	return NewFrame(seq, MsgPingRequest, nil)
}
