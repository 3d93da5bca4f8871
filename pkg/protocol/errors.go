// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means more bytes are needed before a frame can be decoded.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrMalformed means a frame failed length, framing, CRC, or CBOR checks.
	ErrMalformed = errors.New("malformed frame")
	// ErrOutOfRange means a command value is outside what the stove accepts.
	ErrOutOfRange = errors.New("value out of range")
)

// DecodeError describes why a frame was rejected by the decoder.
type DecodeError struct {
	Reason string
	Raw    []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// Unwrap lets errors.Is match ErrMalformed.
func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// IsCRCError reports whether the frame was dropped on a checksum mismatch.
func (e *DecodeError) IsCRCError() bool {
	return len(e.Reason) >= 12 && e.Reason[:12] == "CRC mismatch"
}

func malformed(format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// EncodeError is returned when a command cannot be encoded.
type EncodeError struct {
	Field string
	Value any
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

func outOfRange(field string, value any, format string, args ...any) *EncodeError {
	return &EncodeError{
		Field: field,
		Value: value,
		Err:   fmt.Errorf("%w: %s", ErrOutOfRange, fmt.Sprintf(format, args...)),
	}
}
