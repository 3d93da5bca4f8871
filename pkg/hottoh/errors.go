// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("hottoh: connection error")
	// ErrTimeout matches connection and command errors caused by a deadline.
	ErrTimeout = errors.New("hottoh: timeout")

	ErrCommandTimeout = errors.New("hottoh: command timed out")
	ErrNotConnected   = errors.New("hottoh: not connected")
	ErrRejected       = errors.New("hottoh: command rejected by stove")
	ErrUnsupported    = errors.New("hottoh: not supported by this stove")
	ErrInvalidCommand = errors.New("hottoh: invalid command")
	ErrCanceled       = errors.New("hottoh: command canceled")
)

// ConnectionError reports a failure to open, keep, or close the link to
// the stove.
type ConnectionError struct {
	Op      string // "dial", "handshake", "read", "write", "disconnect"
	Addr    string
	Timeout bool
	Err     error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("hottoh: %s %s", e.Op, e.Addr)
	if e.Timeout {
		msg += ": timed out"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection || (e.Timeout && target == ErrTimeout)
}

// CommandErrorKind classifies why a command failed.
type CommandErrorKind int

const (
	KindTimeout CommandErrorKind = iota + 1
	KindNotConnected
	KindRejected
	KindUnsupported
	KindInvalid
	KindCanceled
)

func (k CommandErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNotConnected:
		return "not connected"
	case KindRejected:
		return "rejected"
	case KindUnsupported:
		return "unsupported"
	case KindInvalid:
		return "invalid"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

func (k CommandErrorKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrCommandTimeout
	case KindNotConnected:
		return ErrNotConnected
	case KindRejected:
		return ErrRejected
	case KindUnsupported:
		return ErrUnsupported
	case KindInvalid:
		return ErrInvalidCommand
	case KindCanceled:
		return ErrCanceled
	}
	return nil
}

// CommandError reports a command that did not complete.
type CommandError struct {
	Kind    CommandErrorKind
	Command string
	// Reason is the stove's reject code for KindRejected.
	Reason string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("hottoh: %s: %s", e.Command, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Is(target error) bool {
	if target == e.Kind.sentinel() {
		return true
	}
	return e.Kind == KindTimeout && target == ErrTimeout
}

func commandError(kind CommandErrorKind, command string, err error) *CommandError {
	return &CommandError{Kind: kind, Command: command, Err: err}
}
