// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeFrame creates a complete wire-formatted frame.
// Returns the frame bytes ready for transmission, including framing and byte stuffing.
func EncodeFrame(seq uint16, msgType uint8, payload map[int]any) ([]byte, error) {
	cborPayload, err := encodeCBORPayload(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}

	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("CBOR payload too large: %d bytes (max %d)", len(cborPayload), MaxPayloadSize)
	}

	// length + seq + CBOR payload is what gets CRC'd and byte-stuffed
	data := make([]byte, 1+SeqSize+len(cborPayload), 1+SeqSize+len(cborPayload)+2)
	data[0] = uint8(len(cborPayload))
	binary.LittleEndian.PutUint16(data[1:3], seq)
	copy(data[3:], cborPayload)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	out := make([]byte, 0, len(stuffed)+2)
	out = append(out, StartByte)
	out = append(out, stuffed...)
	out = append(out, EndByte)
	return out, nil
}

// Encode re-encodes a frame to wire format.
func (f *Frame) Encode() ([]byte, error) {
	return EncodeFrame(f.Seq(), f.Type(), f.PayloadMap())
}

// EncodeCommand validates cmd and encodes it as a frame with the given
// sequence number. Out-of-range values return an *EncodeError wrapping
// ErrOutOfRange. The result depends only on its arguments.
func EncodeCommand(seq uint16, cmd Command) ([]byte, error) {
	frame, err := cmd.Frame(seq)
	if err != nil {
		return nil, err
	}
	return frame.Encode()
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}
	return result, nil
}
