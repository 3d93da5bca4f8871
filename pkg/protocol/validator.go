// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyInvalidCount AnomalyType = iota
	AnomalyMissingField
	AnomalyInvalidTemp
	AnomalyInvalidSpeed
	AnomalyInvalidValue
	AnomalyCRCError
	AnomalyDecodeError
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]any
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a decoded data frame for values no healthy stove
// should report. Returns a slice of validation errors (empty if the frame
// looks sane).
func ValidateFrame(f *Frame) []ValidationError {
	switch f.Type() {
	case MsgDeviceInfo:
		return validateDeviceInfo(f)
	case MsgStateData:
		return validateStateData(f)
	case MsgTemperatureData:
		return validateTemperatureData(f)
	case MsgFanData:
		return validateFanData(f)
	}
	return []ValidationError{}
}

func missing(name string, err error) []ValidationError {
	return []ValidationError{{
		Type:    AnomalyMissingField,
		Message: fmt.Sprintf("%s: %v", name, err),
	}}
}

func validateDeviceInfo(f *Frame) []ValidationError {
	info, err := ParseDeviceInfo(f)
	if err != nil {
		return missing("DEVICE_INFO", err)
	}
	errors := []ValidationError{}
	if info.RoomSensors&0x01 == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidCount,
			Message: "DEVICE_INFO reports no room 1 sensor",
			Details: map[string]any{"room_mask": info.RoomSensors},
		})
	}
	return errors
}

func validateStateData(f *Frame) []ValidationError {
	state, err := ParseStateData(f)
	if err != nil {
		return missing("STATE_DATA", err)
	}
	errors := []ValidationError{}

	if state.Status > StatusAlarm {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid status=%d (max %d)", state.Status, StatusAlarm),
			Details: map[string]any{"status": int(state.Status), "max": int(StatusAlarm)},
		})
	}

	if state.SetPowerLevel != 0 && (state.SetPowerLevel < MinPowerLevel || state.SetPowerLevel > MaxPowerLevel) {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid set power level=%d (valid %d-%d)", state.SetPowerLevel, MinPowerLevel, MaxPowerLevel),
			Details: map[string]any{"set_power_level": state.SetPowerLevel},
		})
	}

	return errors
}

func validateTemperatureData(f *Frame) []ValidationError {
	temp, err := ParseTemperatureData(f)
	if err != nil {
		return missing("TEMPERATURE_DATA", err)
	}
	errors := []ValidationError{}

	lo, hi := -30.0, 120.0
	if temp.Sensor == SensorSmoke {
		hi = 600.0
	}
	if temp.Value < lo || temp.Value > hi {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidTemp,
			Message: fmt.Sprintf("Temperature out of range (%.1f°C, valid: %.0f to %.0f°C)", temp.Value, lo, hi),
			Details: map[string]any{"sensor": temp.Sensor, "value": temp.Value, "min": lo, "max": hi},
		})
	}

	if temp.HasSet && temp.SetMin > temp.SetMax {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidTemp,
			Message: fmt.Sprintf("Set point range inverted (%.1f > %.1f)", temp.SetMin, temp.SetMax),
			Details: map[string]any{"sensor": temp.Sensor, "min": temp.SetMin, "max": temp.SetMax},
		})
	}

	return errors
}

func validateFanData(f *Frame) []ValidationError {
	fan, err := ParseFanData(f)
	if err != nil {
		return missing("FAN_DATA", err)
	}
	errors := []ValidationError{}

	if fan.Fan != FanSmoke && fan.Speed > MaxFanSpeed {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidSpeed,
			Message: fmt.Sprintf("Fan %d speed=%d (max %d)", fan.Fan, fan.Speed, MaxFanSpeed),
			Details: map[string]any{"fan": fan.Fan, "speed": fan.Speed},
		})
	}
	if fan.Fan == FanSmoke && fan.Speed > 4000 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidSpeed,
			Message: fmt.Sprintf("Smoke fan speed=%d RPM (max 4000)", fan.Speed),
			Details: map[string]any{"fan": fan.Fan, "speed": fan.Speed},
		})
	}
	if fan.AirExchange > 100 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Fan %d air exchange=%d%% (max 100)", fan.Fan, fan.AirExchange),
			Details: map[string]any{"fan": fan.Fan, "air_ex": fan.AirExchange},
		})
	}

	return errors
}
