// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// ============================================================
// Command Encoding Tests
// ============================================================

func TestEncodeCommand_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		msgType uint8
	}{
		{"temperature room 1", SetTemperature(1, 21.5), MsgSetTemperature},
		{"temperature min", SetTemperature(1, MinTemperature), MsgSetTemperature},
		{"temperature max room 3", SetTemperature(3, MaxTemperature), MsgSetTemperature},
		{"power level", SetPowerLevel(4), MsgSetPowerLevel},
		{"fan auto", SetFanSpeed(2, 0), MsgSetFanSpeed},
		{"fan max", SetFanSpeed(3, MaxFanSpeed), MsgSetFanSpeed},
		{"power on", SetPower(true), MsgSetPower},
		{"power off", SetPower(false), MsgSetPower},
		{"eco on", SetEcoMode(true), MsgSetEcoMode},
		{"chrono off", SetChronoMode(false), MsgSetChronoMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeCommand(0x1234, tt.cmd)
			if err != nil {
				t.Fatalf("EncodeCommand error: %v", err)
			}

			f, n, err := DecodeFrame(data)
			if err != nil {
				t.Fatalf("DecodeFrame error: %v", err)
			}
			if n != len(data) {
				t.Errorf("Expected whole buffer consumed, got %d/%d", n, len(data))
			}
			if f.Type() != tt.msgType {
				t.Errorf("Expected type 0x%02X, got 0x%02X", tt.msgType, f.Type())
			}
			if f.Seq() != 0x1234 {
				t.Errorf("Expected seq 0x1234, got 0x%04X", f.Seq())
			}
			if !f.IsCommand() {
				t.Error("Command frame should report IsCommand")
			}

			got, err := ParseCommand(f)
			if err != nil {
				t.Fatalf("ParseCommand error: %v", err)
			}
			if got != tt.cmd {
				t.Errorf("Round trip mismatch: got %v, want %v", got, tt.cmd)
			}
		})
	}
}

func TestEncodeCommand_Deterministic(t *testing.T) {
	cmd := SetTemperature(2, 22.5)
	first, err := EncodeCommand(9, cmd)
	if err != nil {
		t.Fatalf("EncodeCommand error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, _ := EncodeCommand(9, cmd)
		if !bytes.Equal(first, again) {
			t.Fatalf("Encoding differs on iteration %d:\n% X\n% X", i, first, again)
		}
	}
}

func TestEncodeCommand_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		cmd   Command
		field string
	}{
		{"temperature too low", SetTemperature(1, 14.5), "temperature"},
		{"temperature too high", SetTemperature(1, 30.5), "temperature"},
		{"temperature off step", SetTemperature(1, 21.3), "temperature"},
		{"temperature NaN", SetTemperature(1, math.NaN()), "temperature"},
		{"room 0", SetTemperature(0, 20), "room"},
		{"room 4", SetTemperature(4, 20), "room"},
		{"power level 0", SetPowerLevel(0), "power_level"},
		{"power level 6", SetPowerLevel(6), "power_level"},
		{"power level fractional", Command{Kind: CmdSetPowerLevel, Value: 2.5}, "power_level"},
		{"fan speed 7", SetFanSpeed(1, 7), "speed"},
		{"fan speed negative", SetFanSpeed(1, -1), "speed"},
		{"fan 0", SetFanSpeed(0, 3), "fan"},
		{"fan 4", SetFanSpeed(4, 3), "fan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeCommand(1, tt.cmd)
			if err == nil {
				t.Fatalf("Expected error, got % X", data)
			}
			if !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Expected ErrOutOfRange, got %v", err)
			}
			var ee *EncodeError
			if !errors.As(err, &ee) {
				t.Fatalf("Expected *EncodeError, got %T", err)
			}
			if ee.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, ee.Field)
			}
		})
	}
}

func TestEncodeCommand_UnknownKind(t *testing.T) {
	_, err := EncodeCommand(1, Command{})
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected *EncodeError, got %v", err)
	}
	if errors.Is(err, ErrOutOfRange) {
		t.Error("Unknown kind is not a range error")
	}
}

func TestParseCommand_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
	}{
		{"not a command", NewPingRequest(1)},
		{"missing temperature", NewFrame(1, MsgSetTemperature, map[int]any{0: uint64(1)})},
		{"missing state", NewFrame(1, MsgSetEcoMode, nil)},
		{"out of range from device side", NewFrame(1, MsgSetFanSpeed, map[int]any{0: uint64(1), 1: uint64(12)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCommand(tt.frame); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{SetTemperature(1, 21), "set_temperature(room=1, 21.0)"},
		{SetFanSpeed(2, 4), "set_speed_fan(fan=2, 4)"},
		{SetPowerLevel(3), "set_power_level(3)"},
		{SetEcoMode(true), "set_eco_mode(true)"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// ============================================================
// Telemetry Builder Tests
// ============================================================

func TestTelemetry_RoundTrip(t *testing.T) {
	t.Run("device info", func(t *testing.T) {
		want := DeviceInfo{
			Name: "Living room", Manufacturer: "HottoH", Model: "Ecoteck",
			Firmware: "2.4.1", FanCount: 2, RoomSensors: 0b011, WaterSensor: true, Pump: true,
		}
		f := decodeOne(t, want.Frame(0))
		got, err := ParseDeviceInfo(f)
		if err != nil {
			t.Fatalf("ParseDeviceInfo error: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
		if !got.HasRoom(2) || got.HasRoom(3) || got.HasRoom(0) {
			t.Error("HasRoom disagrees with the room mask")
		}
	})

	t.Run("state", func(t *testing.T) {
		want := StateData{On: true, Status: StatusModulation, Eco: true, PowerLevel: 3, SetPowerLevel: 4, MinPowerLevel: 1, MaxPowerLevel: 5}
		got, err := ParseStateData(decodeOne(t, want.Frame(0)))
		if err != nil {
			t.Fatalf("ParseStateData error: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("temperature", func(t *testing.T) {
		want := TemperatureData{Sensor: SensorWater, Value: 55.5, HasSet: true, Set: 60, SetMin: 40, SetMax: 80}
		got, err := ParseTemperatureData(decodeOne(t, want.Frame(0)))
		if err != nil {
			t.Fatalf("ParseTemperatureData error: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("negative smoke temperature", func(t *testing.T) {
		want := TemperatureData{Sensor: SensorSmoke, Value: -4.5}
		got, err := ParseTemperatureData(decodeOne(t, want.Frame(0)))
		if err != nil {
			t.Fatalf("ParseTemperatureData error: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("fans", func(t *testing.T) {
		for _, want := range []FanData{
			{Fan: FanSmoke, Speed: 1450},
			{Fan: 2, Speed: 3, SetSpeed: 4, AirExchange: 60},
		} {
			got, err := ParseFanData(decodeOne(t, want.Frame(0)))
			if err != nil {
				t.Fatalf("ParseFanData error: %v", err)
			}
			if got != want {
				t.Errorf("got %+v, want %+v", got, want)
			}
		}
	})

	t.Run("pump", func(t *testing.T) {
		running, err := ParsePumpData(decodeOne(t, NewPumpData(0, true)))
		if err != nil || !running {
			t.Errorf("ParsePumpData = %t, %v", running, err)
		}
	})

	t.Run("reject", func(t *testing.T) {
		f := decodeOne(t, NewReject(8, MsgSetPowerLevel, RejectAlarmActive))
		if !f.IsError() {
			t.Error("Reject frame should report IsError")
		}
		if got := RejectReasonOf(f); got != RejectAlarmActive {
			t.Errorf("RejectReasonOf = %s", got)
		}
		if got := RejectReasonOf(NewInvalidCommand(8, 0x2A)); got != RejectNotSupported {
			t.Errorf("Invalid command should map to NOT_SUPPORTED, got %s", got)
		}
	})
}

func TestParse_WrongType(t *testing.T) {
	ping := NewPingRequest(1)
	if _, err := ParseDeviceInfo(ping); !IsMalformed(err) {
		t.Errorf("ParseDeviceInfo: %v", err)
	}
	if _, err := ParseStateData(ping); !IsMalformed(err) {
		t.Errorf("ParseStateData: %v", err)
	}
	if _, err := ParseTemperatureData(ping); !IsMalformed(err) {
		t.Errorf("ParseTemperatureData: %v", err)
	}
	if _, err := ParseFanData(ping); !IsMalformed(err) {
		t.Errorf("ParseFanData: %v", err)
	}
	if _, err := ParsePumpData(ping); !IsMalformed(err) {
		t.Errorf("ParsePumpData: %v", err)
	}
}

// decodeOne pushes a frame through the wire and back.
func decodeOne(t *testing.T, f *Frame) *Frame {
	t.Helper()
	out, _, err := DecodeFrame(mustEncode(t, f))
	if err != nil {
		t.Fatalf("DecodeFrame error: %v", err)
	}
	return out
}
