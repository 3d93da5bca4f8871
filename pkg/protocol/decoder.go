// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"errors"
	"time"
)

// Decoder implements the frame decoder state machine. It is fed one byte at
// a time so the result never depends on how the byte stream was chunked.
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	seqBytes    int
	frame       *Frame
	rawBuffer   []byte // Accumulate raw bytes including framing
}

// NewDecoder creates a new protocol decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.seqBytes = 0
	d.escapeNext = false
	d.frame = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// InFrame reports whether the decoder holds a partially received frame.
func (d *Decoder) InFrame() bool {
	return d.state != stateIdle
}

// GetRawBytes returns the accumulated raw bytes since the last frame
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

func (d *Decoder) fail(err *DecodeError) (*Frame, error) {
	err.Raw = append([]byte(nil), d.rawBuffer...)
	d.Reset()
	return nil, err
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns a *DecodeError if the frame in progress is malformed; the decoder
// is reset and resynchronizes on the next START byte.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}

	originalB := b
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	if originalB == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer[:0], originalB)
		d.state = stateLength
		return nil, nil
	}

	if originalB == EndByte {
		if d.state == stateIdle {
			d.rawBuffer = d.rawBuffer[:0]
			return nil, nil
		}
		if d.state != stateEnd {
			return d.fail(malformed("unexpected END byte in state %d", d.state))
		}
		if d.frame.crc != CalculateCRC(d.buffer[:d.bufferIndex]) {
			return d.fail(malformed("CRC mismatch: expected 0x%04X, got 0x%04X",
				CalculateCRC(d.buffer[:d.bufferIndex]), d.frame.crc))
		}
		frame := d.frame
		if err := frame.ParseError(); err != nil {
			return d.fail(malformed("bad payload: %v", err))
		}
		frame.timestamp = time.Now()
		d.Reset()
		return frame, nil
	}

	switch d.state {
	case stateIdle:
		// Noise between frames
		d.rawBuffer = d.rawBuffer[:0]
		return nil, nil

	case stateLength:
		if b > MaxPayloadSize {
			return d.fail(malformed("invalid length: %d (max %d)", b, MaxPayloadSize))
		}
		d.frame = &Frame{length: b, cborPayload: make([]byte, 0, b)}
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		d.seqBytes = 0
		d.state = stateSeq
		return nil, nil

	case stateSeq:
		// Little-endian sequence number
		d.frame.seq |= uint16(b) << (d.seqBytes * 8)
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		d.seqBytes++
		if d.seqBytes >= SeqSize {
			if d.frame.length == 0 {
				d.state = stateCRC1
			} else {
				d.state = statePayload
			}
		}
		return nil, nil

	case statePayload:
		if d.bufferIndex >= MaxFrameSize {
			return d.fail(malformed("buffer overflow: frame exceeds max size"))
		}
		d.frame.cborPayload = append(d.frame.cborPayload, b)
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		if len(d.frame.cborPayload) >= int(d.frame.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.frame.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.frame.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		return d.fail(malformed("missing END byte"))

	default:
		return d.fail(malformed("invalid state: %d", d.state))
	}
}

// Feed runs a chunk of bytes through the decoder and returns every frame
// completed by it, plus the decode errors seen along the way.
func (d *Decoder) Feed(data []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

// DecodeFrame decodes the first frame in buf. It returns the frame and the
// number of bytes consumed. ErrIncomplete is returned (with consumed 0) when
// buf ends before a frame does. A *DecodeError is returned with the bytes
// consumed up to the point of failure so callers can skip past it.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	d := NewDecoder()
	for i, b := range buf {
		frame, err := d.DecodeByte(b)
		if err != nil {
			return nil, i + 1, err
		}
		if frame != nil {
			return frame, i + 1, nil
		}
	}
	return nil, 0, ErrIncomplete
}

// IsMalformed reports whether err came from a malformed frame.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
