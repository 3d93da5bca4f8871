// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

// Reconnect backoff bounds
const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// Exit codes shared by the test commands
const (
	exitOK         = 0
	exitTimeout    = 1
	exitConnection = 2
)

// GetPassword retrieves the WebSocket password from the configuration
// (HOTTOH_PASSWORD) or prompts the user
func GetPassword() (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// resolveCredentials prompts for a password when a WebSocket username is set
// without one.
func resolveCredentials() error {
	if cfg.URL == "" || cfg.Username == "" || cfg.Password != "" {
		return nil
	}
	pw, err := GetPassword()
	if err != nil {
		return err
	}
	cfg.Password = pw
	return nil
}

// dialer returns the configured transport
func dialer() (hottoh.Dialer, error) {
	if err := resolveCredentials(); err != nil {
		return nil, err
	}
	return cfg.Dialer(), nil
}

// OpenConnection opens the raw byte stream to the stove
func OpenConnection(ctx context.Context) (hottoh.Conn, string, error) {
	d, err := dialer()
	if err != nil {
		return nil, "", err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	conn, err := d.Dial(ctx)
	if err != nil {
		return nil, "", err
	}
	return conn, d.String(), nil
}

// newSession builds a disconnected session from the configuration
func newSession() (*hottoh.Session, string, error) {
	d, err := dialer()
	if err != nil {
		return nil, "", err
	}
	sc := cfg.SessionConfig()
	sc.Dialer = d
	sc.Logger = log
	return hottoh.New(sc), d.String(), nil
}

// OpenSession connects a session and waits for the handshake
func OpenSession(ctx context.Context) (*hottoh.Session, string, error) {
	s, connInfo, err := newSession()
	if err != nil {
		return nil, "", err
	}
	if err := hottoh.ConnectWithTimeout(ctx, s, cfg.ConnectTimeout); err != nil {
		return nil, "", err
	}
	return s, connInfo, nil
}

// closeSession disconnects, logging a disconnect that did not finish in time
func closeSession(s *hottoh.Session) {
	if err := hottoh.DisconnectWithTimeout(s, cfg.DisconnectTimeout); err != nil {
		log.Warn("disconnect", zap.Error(err))
	}
}

// keepConnected connects s and reconnects it with exponential backoff
// whenever the link fails, until ctx ends. onChange is called after every
// state change it observes.
func keepConnected(ctx context.Context, s *hottoh.Session, onChange func(hottoh.ConnState, error)) {
	backoff := minBackoff
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		err := hottoh.ConnectWithTimeout(ctx, s, cfg.ConnectTimeout)
		if err == nil {
			backoff = minBackoff
			if onChange != nil {
				onChange(hottoh.StateConnected, nil)
			}
			// Wait for the link to drop
			for s.IsConnected() {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			err = s.LastError()
			log.Warn("link lost", zap.Error(err))
		} else if ctx.Err() != nil {
			return
		} else {
			log.Warn("connect failed", zap.Error(err), zap.Duration("retry_in", backoff))
		}
		if onChange != nil {
			onChange(s.State(), err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
