// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"fmt"
	"time"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	msgType := FormatMessageType(f.Type())

	result := fmt.Sprintf("[%s] %s (0x%02X) seq=%d len=%d\n", timestamp, msgType, f.Type(), f.seq, f.length)
	result += FormatPayloadMap(f.Type(), f.PayloadMap())
	return result
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	// Requests (0x10-0x1F)
	case MsgInfoRequest:
		return "INFO_REQUEST"
	case MsgTelemetryRequest:
		return "TELEMETRY_REQUEST"
	case MsgPingRequest:
		return "PING_REQUEST"

	// Commands (0x20-0x2F)
	case MsgSetTemperature:
		return "SET_TEMPERATURE"
	case MsgSetPowerLevel:
		return "SET_POWER_LEVEL"
	case MsgSetFanSpeed:
		return "SET_FAN_SPEED"
	case MsgSetPower:
		return "SET_POWER"
	case MsgSetEcoMode:
		return "SET_ECO_MODE"
	case MsgSetChronoMode:
		return "SET_CHRONO_MODE"

	// Data (0x30-0x3F)
	case MsgDeviceInfo:
		return "DEVICE_INFO"
	case MsgStateData:
		return "STATE_DATA"
	case MsgTemperatureData:
		return "TEMPERATURE_DATA"
	case MsgFanData:
		return "FAN_DATA"
	case MsgPumpData:
		return "PUMP_DATA"
	case MsgAck:
		return "ACK"
	case MsgPingResponse:
		return "PING_RESPONSE"

	// Errors (0xE0-0xEF)
	case MsgErrorRejected:
		return "ERROR_REJECTED"
	case MsgErrorInvalidCmd:
		return "ERROR_INVALID_CMD"

	default:
		return "UNKNOWN"
	}
}

// FormatPayloadMap formats the CBOR payload map based on message type
func FormatPayloadMap(msgType uint8, m map[int]any) string {
	switch msgType {
	case MsgInfoRequest, MsgTelemetryRequest, MsgPingRequest:
		return "  (no payload)\n"

	case MsgPingResponse:
		uptime, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Uptime: %s\n", formatDuration(uptime))

	case MsgSetTemperature:
		room, _ := GetMapUint(m, 0)
		temp, _ := GetMapTenths(m, 1)
		return fmt.Sprintf("  Room: %d, Target: %.1f°C\n", room, temp)

	case MsgSetPowerLevel:
		level, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Power Level: %d\n", level)

	case MsgSetFanSpeed:
		fan, _ := GetMapUint(m, 0)
		speed, _ := GetMapUint(m, 1)
		return fmt.Sprintf("  Fan: %d, Speed: %s\n", fan, formatFanSpeed(speed))

	case MsgSetPower, MsgSetEcoMode, MsgSetChronoMode:
		on, _ := GetMapBool(m, 0)
		return fmt.Sprintf("  State: %s\n", formatOnOff(on))

	case MsgDeviceInfo:
		name, _ := GetMapString(m, 0)
		manufacturer, _ := GetMapString(m, 1)
		model, _ := GetMapString(m, 2)
		firmware, _ := GetMapString(m, 3)
		fans, _ := GetMapUint(m, 4)
		rooms, _ := GetMapUint(m, 5)
		water, _ := GetMapBool(m, 6)
		pump, _ := GetMapBool(m, 7)
		return fmt.Sprintf("  Name: %q, Manufacturer: %s, Model: %s, Firmware: %s\n  Fans: %d, Rooms: 0b%03b, Water: %t, Pump: %t\n",
			name, manufacturer, model, firmware, fans, rooms, water, pump)

	case MsgStateData:
		on, _ := GetMapBool(m, 0)
		status, _ := GetMapUint(m, 1)
		eco, _ := GetMapBool(m, 2)
		chrono, _ := GetMapBool(m, 3)
		level, _ := GetMapUint(m, 4)
		setLevel, _ := GetMapUint(m, 5)
		return fmt.Sprintf("  Power: %s, Status: %s (%d), Eco: %s, Chrono: %s, Level: %d/%d\n",
			formatOnOff(on), StoveStatus(status), status, formatOnOff(eco), formatOnOff(chrono), level, setLevel)

	case MsgTemperatureData:
		sensor, _ := GetMapUint(m, 0)
		value, _ := GetMapTenths(m, 1)
		result := fmt.Sprintf("  Sensor: %s, Value: %.1f°C", formatSensor(sensor), value)
		if set, ok := GetMapTenths(m, 2); ok {
			lo, _ := GetMapTenths(m, 3)
			hi, _ := GetMapTenths(m, 4)
			result += fmt.Sprintf(", Set: %.1f°C [%.1f-%.1f]", set, lo, hi)
		}
		return result + "\n"

	case MsgFanData:
		fan, _ := GetMapUint(m, 0)
		speed, _ := GetMapUint(m, 1)
		if fan == FanSmoke {
			return fmt.Sprintf("  Fan: smoke, Speed: %d RPM\n", speed)
		}
		set, _ := GetMapUint(m, 2)
		air, _ := GetMapUint(m, 3)
		return fmt.Sprintf("  Fan: %d, Speed: %d, Set: %s, Air Exchange: %d%%\n", fan, speed, formatFanSpeed(set), air)

	case MsgPumpData:
		running, _ := GetMapBool(m, 0)
		return fmt.Sprintf("  Pump: %s\n", formatOnOff(running))

	case MsgAck:
		acked, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Acked: %s\n", FormatMessageType(uint8(acked)))

	case MsgErrorRejected:
		acked, _ := GetMapUint(m, 0)
		reason, _ := GetMapUint(m, 1)
		return fmt.Sprintf("  Rejected: %s, Reason: %s (%d)\n", FormatMessageType(uint8(acked)), RejectReason(reason), reason)

	case MsgErrorInvalidCmd:
		acked, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Invalid: 0x%02X\n", acked)

	default:
		if m == nil {
			return "  (no payload)\n"
		}
		return fmt.Sprintf("  Raw: %v\n", m)
	}
}

var statusNames = map[StoveStatus]string{
	StatusOff:           "OFF",
	StatusStarting:      "STARTING",
	StatusIgnition:      "IGNITION",
	StatusStabilization: "STABILIZATION",
	StatusPower:         "POWER",
	StatusModulation:    "MODULATION",
	StatusStandby:       "STANDBY",
	StatusSafety:        "SAFETY",
	StatusExtinguishing: "EXTINGUISHING",
	StatusCleaning:      "CLEANING",
	StatusAlarm:         "ALARM",
}

func (s StoveStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (r RejectReason) String() string {
	switch r {
	case RejectOutOfRange:
		return "OUT_OF_RANGE"
	case RejectBusy:
		return "BUSY"
	case RejectNotSupported:
		return "NOT_SUPPORTED"
	case RejectAlarmActive:
		return "ALARM_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

func formatSensor(sensor uint64) string {
	switch sensor {
	case SensorRoom1, SensorRoom2, SensorRoom3:
		return fmt.Sprintf("room %d", sensor)
	case SensorWater:
		return "water"
	case SensorSmoke:
		return "smoke"
	default:
		return fmt.Sprintf("unknown(%d)", sensor)
	}
}

func formatFanSpeed(speed uint64) string {
	if speed == 0 {
		return "AUTO"
	}
	return fmt.Sprintf("%d", speed)
}

func formatOnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func formatDuration(ms uint64) string {
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}
