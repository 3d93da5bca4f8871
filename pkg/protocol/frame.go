// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import "time"

// Frame represents a decoded HottoH protocol frame
type Frame struct {
	length      uint8
	seq         uint16
	cborPayload []byte // Raw CBOR bytes: [msg_type, payload_map]
	crc         uint16
	timestamp   time.Time

	// Cached parsed values (lazy parsing)
	msgType    uint8
	payloadMap map[int]any
	parsed     bool
	parseErr   error
}

// NewFrame creates a frame from already-parsed values. Used by command
// builders and tests; CBOR encoding and CRC are computed when encoded.
func NewFrame(seq uint16, msgType uint8, payload map[int]any) *Frame {
	return &Frame{
		seq:        seq,
		msgType:    msgType,
		payloadMap: payload,
		parsed:     true,
		timestamp:  time.Now(),
	}
}

func (f *Frame) ensureParsed() {
	if f.parsed {
		return
	}
	f.parsed = true
	if len(f.cborPayload) == 0 {
		return
	}
	f.msgType, f.payloadMap, f.parseErr = ParseCBORMessage(f.cborPayload)
}

// Length returns the frame's CBOR payload length
func (f *Frame) Length() uint8 {
	return f.length
}

// Seq returns the frame's sequence number
func (f *Frame) Seq() uint16 {
	return f.seq
}

// Type returns the frame's message type (parsed from CBOR)
func (f *Frame) Type() uint8 {
	f.ensureParsed()
	return f.msgType
}

// Payload returns the raw CBOR payload bytes
func (f *Frame) Payload() []byte {
	return f.cborPayload
}

// PayloadMap returns the decoded CBOR payload map (nil for empty payloads)
func (f *Frame) PayloadMap() map[int]any {
	f.ensureParsed()
	return f.payloadMap
}

// ParseError returns any error from parsing the CBOR payload
func (f *Frame) ParseError() error {
	f.ensureParsed()
	return f.parseErr
}

// CRC returns the frame's CRC value
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// IsUnsolicited reports whether the device pushed this frame on its own.
func (f *Frame) IsUnsolicited() bool {
	return f.seq == SeqUnsolicited
}

// IsCommand reports whether the frame carries a state-changing command.
func (f *Frame) IsCommand() bool {
	t := f.Type()
	return t >= MsgSetTemperature && t <= 0x2F
}

// IsError reports whether the frame is in the error range.
func (f *Frame) IsError() bool {
	t := f.Type()
	return t >= MsgErrorRejected && t <= 0xEF
}
