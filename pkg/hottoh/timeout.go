// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Handshake and teardown bounds used by ConnectWithTimeout and
// DisconnectWithTimeout when called with a zero timeout.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultDisconnectTimeout = 3 * time.Second
	handshakeRetryInterval   = time.Second
)

// ConnectWithTimeout connects and waits for the stove's handshake, asking
// for it again every second. If the handshake does not arrive within
// timeout, the session is disconnected and a *ConnectionError with Timeout
// set is returned.
func ConnectWithTimeout(ctx context.Context, s *Session, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		return err
	}

	ready := s.Ready()
	ticker := time.NewTicker(handshakeRetryInterval)
	defer ticker.Stop()

	s.requestInfo()
	for {
		select {
		case <-ready:
			return nil
		case <-ticker.C:
			if !s.IsConnected() {
				err := s.LastError()
				_ = DisconnectWithTimeout(s, 0)
				return &ConnectionError{Op: "handshake", Addr: dialerName(s.cfg.Dialer), Err: err}
			}
			s.requestInfo()
		case <-ctx.Done():
			s.log.Warn("handshake timed out", zap.Duration("timeout", timeout))
			_ = DisconnectWithTimeout(s, 0)
			return &ConnectionError{
				Op:      "handshake",
				Addr:    dialerName(s.cfg.Dialer),
				Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
				Err:     ctx.Err(),
			}
		}
	}
}

// DisconnectWithTimeout disconnects, giving up waiting after timeout. The
// session is marked disconnected either way.
func DisconnectWithTimeout(s *Session, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultDisconnectTimeout
	}
	done := make(chan error, 1)
	go func() { done <- s.Disconnect() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return &ConnectionError{Op: "disconnect", Addr: dialerName(s.cfg.Dialer), Timeout: true}
	}
}
