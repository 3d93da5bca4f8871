// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package protocol implements the framed binary protocol spoken by HottoH
// stove controllers over TCP, serial, and WebSocket bridges.
//
// Each frame carries a CBOR message [msg_type, payload_map] wrapped in
// START/END framing with byte stuffing and a CRC-16-CCITT trailer. This
// package provides frame encoding/decoding, command builders, payload
// validation, and human-readable formatting. It performs no I/O.
package protocol

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxFrameSize   = 128 // 5 overhead + 123 payload
	MaxPayloadSize = 123
	SeqSize        = 2
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// SeqUnsolicited marks telemetry pushed by the device without a request.
const SeqUnsolicited = 0

// Message types - Requests (Client → Stove) 0x10-0x1F
const (
	MsgInfoRequest      = 0x10
	MsgTelemetryRequest = 0x11
	MsgPingRequest      = 0x1F
)

// Message types - Commands (Client → Stove) 0x20-0x2F
const (
	MsgSetTemperature = 0x20
	MsgSetPowerLevel  = 0x21
	MsgSetFanSpeed    = 0x22
	MsgSetPower       = 0x23
	MsgSetEcoMode     = 0x24
	MsgSetChronoMode  = 0x25
)

// Message types - Data (Stove → Client) 0x30-0x3F
const (
	MsgDeviceInfo      = 0x30
	MsgStateData       = 0x31
	MsgTemperatureData = 0x32
	MsgFanData         = 0x33
	MsgPumpData        = 0x34
	MsgAck             = 0x3E
	MsgPingResponse    = 0x3F
)

// Message types - Errors (Stove → Client) 0xE0-0xEF
const (
	MsgErrorRejected   = 0xE0
	MsgErrorInvalidCmd = 0xE1
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateSeq
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)

// Sensor identifiers used by TEMPERATURE_DATA and SET_TEMPERATURE
const (
	SensorRoom1 = 1
	SensorRoom2 = 2
	SensorRoom3 = 3
	SensorWater = 4
	SensorSmoke = 5
)

// FanSmoke is the fan index of the smoke extractor in FAN_DATA.
const FanSmoke = 0

// Command value limits enforced by EncodeCommand
const (
	MinTemperature  = 15.0
	MaxTemperature  = 30.0
	TemperatureStep = 0.5
	MinFanSpeed     = 0
	MaxFanSpeed     = 6
	MinFanIndex     = 1
	MaxFanIndex     = 3
	MinPowerLevel   = 1
	MaxPowerLevel   = 5
)

// StoveStatus represents the controller status code from STATE_DATA
type StoveStatus int

// Stove status values
const (
	StatusOff StoveStatus = iota
	StatusStarting
	StatusIgnition
	StatusStabilization
	StatusPower
	StatusModulation
	StatusStandby
	StatusSafety
	StatusExtinguishing
	StatusCleaning
	StatusAlarm
)

// Action is the coarse heating activity derived from the status code.
type Action string

// Action values
const (
	ActionOff     Action = "off"
	ActionHeating Action = "heating"
	ActionIdle    Action = "idle"
)

// Action maps a status code to its heating activity.
func (s StoveStatus) Action() Action {
	switch s {
	case StatusStarting, StatusIgnition, StatusStabilization, StatusPower, StatusModulation:
		return ActionHeating
	case StatusStandby, StatusCleaning, StatusExtinguishing:
		return ActionIdle
	default:
		return ActionOff
	}
}

// RejectReason represents the reason code carried by ERROR_REJECTED
type RejectReason int

// Reject reason values
const (
	RejectUnknown RejectReason = iota
	RejectOutOfRange
	RejectBusy
	RejectNotSupported
	RejectAlarmActive
)
