// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Default network endpoint of a HottoH WiFi module.
const (
	DefaultHost = "192.168.4.10"
	DefaultPort = 5001
)

// DefaultBaudRate is used by SerialDialer when BaudRate is zero.
const DefaultBaudRate = 115200

// Conn is a byte stream to the stove.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a Conn. Implementations must honor ctx while dialing.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	String() string
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// TCPDialer connects to the stove's WiFi module over TCP.
type TCPDialer struct {
	Host string
	Port int
}

func (d TCPDialer) addr() string {
	host, port := d.Host, d.Port
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (d TCPDialer) Dial(ctx context.Context) (Conn, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", d.addr())
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}
	return conn, nil
}

func (d TCPDialer) String() string {
	return "tcp://" + d.addr()
}

// SerialDialer opens a direct serial link to the controller board.
type SerialDialer struct {
	Device   string
	BaudRate int
}

func (d SerialDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(d.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", d.Device, err)
	}
	return port, nil
}

func (d SerialDialer) String() string {
	return fmt.Sprintf("serial://%s@%d", d.Device, d.BaudRate)
}

// WebSocketDialer reaches the stove through a WebSocket bridge that relays
// binary frames, with optional HTTP Basic auth.
type WebSocketDialer struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

func (d WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: d.SkipSSLVerify}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, d.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

func (d WebSocketDialer) String() string {
	return d.URL
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// wsConn adapts a message-oriented WebSocket to a byte stream. Reads come
// from a single goroutine; writes are serialized by the session.
type wsConn struct {
	conn   *websocket.Conn
	buf    []byte
	closed bool
}

func (w *wsConn) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
