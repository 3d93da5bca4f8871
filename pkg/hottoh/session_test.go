// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benlbrm/ha-hottoh-component/internal/simulator"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// ============================================================
// Helpers
// ============================================================

func startStove(t *testing.T, cfg simulator.Config) (*simulator.Stove, hottoh.TCPDialer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stove := simulator.New(cfg)
	addr, err := stove.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		stove.Wait()
	})
	return stove, hottoh.TCPDialer{Host: "127.0.0.1", Port: addr.(*net.TCPAddr).Port}
}

func newSession(t *testing.T, d hottoh.Dialer, tweak ...func(*hottoh.Config)) *hottoh.Session {
	t.Helper()
	cfg := hottoh.Config{
		Dialer:         d,
		CommandTimeout: 2 * time.Second,
		PollInterval:   -1,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	s := hottoh.New(cfg)
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

func connected(t *testing.T, cfg simulator.Config, tweak ...func(*hottoh.Config)) (*simulator.Stove, *hottoh.Session) {
	t.Helper()
	stove, dialer := startStove(t, cfg)
	s := newSession(t, dialer, tweak...)
	require.NoError(t, hottoh.ConnectWithTimeout(context.Background(), s, 3*time.Second))
	// Wait for the telemetry requested after the handshake
	require.Eventually(t, func() bool {
		_, ok := s.Get(hottoh.SetRoomTemperature(1))
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	return stove, s
}

func commandKind(t *testing.T, err error) hottoh.CommandErrorKind {
	t.Helper()
	var ce *hottoh.CommandError
	require.ErrorAs(t, err, &ce)
	return ce.Kind
}

// ============================================================
// Connection lifecycle
// ============================================================

func TestConnectWithTimeout_Handshake(t *testing.T) {
	_, s := connected(t, simulator.Config{})

	assert.True(t, s.IsConnected())
	assert.Equal(t, hottoh.StateConnected, s.State())

	caps, ok := s.Capabilities()
	require.True(t, ok)
	assert.Equal(t, 2, caps.FanCount)
	assert.True(t, caps.HasRoomSensor(1))
	assert.False(t, caps.HasRoomSensor(2))
	assert.False(t, caps.HasWaterSensor())
	assert.Equal(t, "1.0.0", caps.Firmware)

	name, ok := s.Snapshot().String(hottoh.AttrName)
	require.True(t, ok)
	assert.Equal(t, "Simulated stove", name)

	select {
	case <-s.Ready():
	default:
		t.Fatal("Ready should be closed after the handshake")
	}
}

func TestConnectWithTimeout_SilentDevice(t *testing.T) {
	_, dialer := startStove(t, simulator.Config{Silent: true})
	s := newSession(t, dialer)

	start := time.Now()
	err := hottoh.ConnectWithTimeout(context.Background(), s, 300*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, hottoh.ErrConnection)
	assert.ErrorIs(t, err, hottoh.ErrTimeout)
	var ce *hottoh.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "handshake", ce.Op)

	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, hottoh.StateDisconnected, s.State())
	_, ok := s.Capabilities()
	assert.False(t, ok)
}

func TestConnect_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := newSession(t, hottoh.TCPDialer{Host: "127.0.0.1", Port: port})
	err = s.Connect(context.Background())

	assert.ErrorIs(t, err, hottoh.ErrConnection)
	assert.Equal(t, hottoh.StateFailed, s.State())
	assert.Equal(t, err, s.LastError())
}

func TestConnect_Idempotent(t *testing.T) {
	_, s := connected(t, simulator.Config{})
	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.IsConnected())
}

func TestDisconnect_Idempotent(t *testing.T) {
	_, s := connected(t, simulator.Config{})
	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())
	require.NoError(t, hottoh.DisconnectWithTimeout(s, time.Second))
	assert.Equal(t, hottoh.StateDisconnected, s.State())
}

func TestDisconnect_NoCacheMutationAfter(t *testing.T) {
	stove, s := connected(t, simulator.Config{})

	require.NoError(t, hottoh.DisconnectWithTimeout(s, time.Second))
	version := s.Cache().Version()
	before := s.Snapshot()

	stove.SetRoomTemperature(1, 25)
	for i := 0; i < 5; i++ {
		stove.Push()
	}
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, version, s.Cache().Version())
	assert.Equal(t, before, s.Snapshot())
}

func TestReadFailure_MovesToFailed(t *testing.T) {
	stove, s := connected(t, simulator.Config{})

	stove.DropConnections()
	require.Eventually(t, func() bool {
		return s.State() == hottoh.StateFailed
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, s.IsConnected())
	assert.ErrorIs(t, s.LastError(), hottoh.ErrConnection)

	err := s.SetEcoMode(context.Background(), true)
	assert.ErrorIs(t, err, hottoh.ErrNotConnected)

	// Last-known values stay readable
	_, ok := s.Get(hottoh.SetRoomTemperature(1))
	assert.True(t, ok)

	// Reconnecting is up to the caller
	require.NoError(t, hottoh.ConnectWithTimeout(context.Background(), s, 3*time.Second))
	assert.True(t, s.IsConnected())
}

// ============================================================
// Commands
// ============================================================

func TestSend_NotConnected(t *testing.T) {
	s := hottoh.New(hottoh.Config{Dialer: hottoh.TCPDialer{}})
	err := s.SetOn(context.Background())
	assert.ErrorIs(t, err, hottoh.ErrNotConnected)
	assert.Equal(t, hottoh.KindNotConnected, commandKind(t, err))
}

func TestSend_Acknowledged(t *testing.T) {
	stove, s := connected(t, simulator.Config{})

	require.NoError(t, s.SetEcoMode(context.Background(), true))
	assert.True(t, stove.State().Eco)

	require.NoError(t, s.SetChronoMode(context.Background(), true))
	assert.True(t, stove.State().Chrono)
	assert.False(t, stove.State().On, "chrono must not touch power")

	require.NoError(t, s.SetOn(context.Background()))
	assert.True(t, stove.State().On)

	stats := s.CommandStats()
	assert.Equal(t, uint64(3), stats.Sent)
	assert.Equal(t, uint64(3), stats.Confirmed)
}

func TestSend_ConfirmedByTelemetry(t *testing.T) {
	_, s := connected(t, simulator.Config{TelemetryOnly: true})

	require.NoError(t, s.SetPowerLevel(context.Background(), 5))
	level, ok := s.Snapshot().Int(hottoh.AttrSetPowerLevel)
	require.True(t, ok)
	assert.Equal(t, 5, level)
}

func TestSend_Timeout(t *testing.T) {
	_, s := connected(t, simulator.Config{IgnoreCommands: true}, func(c *hottoh.Config) {
		c.CommandTimeout = 200 * time.Millisecond
	})

	start := time.Now()
	err := s.SetOff(context.Background())
	assert.ErrorIs(t, err, hottoh.ErrCommandTimeout)
	assert.ErrorIs(t, err, hottoh.ErrTimeout)
	assert.Equal(t, hottoh.KindTimeout, commandKind(t, err))
	assert.Less(t, time.Since(start), time.Second)

	// The session survives a timed-out command
	assert.True(t, s.IsConnected())
	assert.Equal(t, uint64(1), s.CommandStats().Timeouts)
}

func TestSend_Rejected(t *testing.T) {
	_, s := connected(t, simulator.Config{
		Reject: map[uint8]protocol.RejectReason{protocol.MsgSetPowerLevel: protocol.RejectAlarmActive},
	})

	err := s.SetPowerLevel(context.Background(), 2)
	assert.ErrorIs(t, err, hottoh.ErrRejected)
	var ce *hottoh.CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ALARM_ACTIVE", ce.Reason)
}

func TestSend_RejectedAfterUnrelatedTelemetry(t *testing.T) {
	tests := []struct {
		name string
		push func(*simulator.Stove)
	}{
		{"smoke temperature", func(st *simulator.Stove) {
			st.PushFrame(protocol.TemperatureData{Sensor: protocol.SensorSmoke, Value: 120}.Frame(protocol.SeqUnsolicited))
		}},
		{"unchanged state", func(st *simulator.Stove) { st.Push() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stove, s := connected(t, simulator.Config{
				ConfirmDelay: 200 * time.Millisecond,
				Reject:       map[uint8]protocol.RejectReason{protocol.MsgSetEcoMode: protocol.RejectBusy},
			})
			eco, ok := s.Snapshot().Bool(hottoh.AttrEcoMode)
			require.True(t, ok)
			require.False(t, eco)

			done := make(chan error, 1)
			go func() { done <- s.SetEcoMode(context.Background(), false) }()

			// Telemetry lands while the stove is still deciding
			require.Eventually(t, func() bool { return len(stove.Commands()) == 1 }, time.Second, 5*time.Millisecond)
			tt.push(stove)

			err := <-done
			assert.ErrorIs(t, err, hottoh.ErrRejected)
			assert.Equal(t, uint64(1), s.CommandStats().Rejected)
			assert.Zero(t, s.CommandStats().Confirmed)
		})
	}
}

func TestSend_FanNotFitted(t *testing.T) {
	stove, s := connected(t, simulator.Config{})

	err := s.SetSpeedFan(context.Background(), 3, 2)
	assert.ErrorIs(t, err, hottoh.ErrUnsupported)
	assert.Empty(t, stove.Commands(), "unsupported commands must not reach the wire")

	require.NoError(t, s.SetSpeedFan(context.Background(), 2, 4))
	speed, ok := s.Snapshot().Int(hottoh.SetFanSpeed(2))
	require.True(t, ok)
	assert.Equal(t, 4, speed)
}

func TestSend_RoomNotFitted(t *testing.T) {
	_, s := connected(t, simulator.Config{})
	err := s.SetRoomTemperature(context.Background(), 2, 21)
	assert.ErrorIs(t, err, hottoh.ErrUnsupported)
}

func TestSend_OutOfRange(t *testing.T) {
	stove, s := connected(t, simulator.Config{})

	err := s.SetTemperature(context.Background(), 35)
	assert.ErrorIs(t, err, hottoh.ErrInvalidCommand)
	assert.ErrorIs(t, err, protocol.ErrOutOfRange)
	assert.Empty(t, stove.Commands())
}

func TestSend_Canceled(t *testing.T) {
	_, s := connected(t, simulator.Config{IgnoreCommands: true}, func(c *hottoh.Config) {
		c.CommandTimeout = 5 * time.Second
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.SetOn(ctx)
	assert.ErrorIs(t, err, hottoh.ErrCanceled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSend_SerializedInSubmissionOrder(t *testing.T) {
	stove, s := connected(t, simulator.Config{ConfirmDelay: 50 * time.Millisecond})

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	want := make([]protocol.Command, n)
	for i := 0; i < n; i++ {
		temp := 20 + 0.5*float64(i)
		want[i] = protocol.SetTemperature(1, temp)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.SetTemperature(context.Background(), temp)
		}(i)
		// Give each sender time to queue before the next one starts
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "command %d", i)
	}
	assert.Equal(t, want, stove.Commands())
	assert.Equal(t, 1, stove.MaxInFlight(), "commands overlapped on the wire")
}

func TestGet_ReturnsPriorValueUntilConfirmed(t *testing.T) {
	_, s := connected(t, simulator.Config{ConfirmDelay: 300 * time.Millisecond, TelemetryOnly: true})

	before, ok := s.Snapshot().Float(hottoh.SetRoomTemperature(1))
	require.True(t, ok)
	require.Equal(t, 20.0, before)

	done := make(chan error, 1)
	go func() { done <- s.SetTemperature(context.Background(), 23.5) }()

	time.Sleep(100 * time.Millisecond)
	during, _ := s.Snapshot().Float(hottoh.SetRoomTemperature(1))
	assert.Equal(t, 20.0, during, "cache must not be updated optimistically")

	require.NoError(t, <-done)
	after, _ := s.Snapshot().Float(hottoh.SetRoomTemperature(1))
	assert.Equal(t, 23.5, after)
}

func TestPing(t *testing.T) {
	_, s := connected(t, simulator.Config{})
	rtt, err := s.Ping(context.Background())
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	require.Eventually(t, func() bool {
		_, ok := s.Snapshot().Int(hottoh.AttrUptime)
		return ok
	}, time.Second, 10*time.Millisecond)
}

// ============================================================
// Telemetry
// ============================================================

func TestPolling_UpdatesCache(t *testing.T) {
	stove, s := connected(t, simulator.Config{}, func(c *hottoh.Config) {
		c.PollInterval = 50 * time.Millisecond
	})

	stove.SetRoomTemperature(1, 22.5)
	require.Eventually(t, func() bool {
		v, _ := s.Snapshot().Float(hottoh.RoomTemperature(1))
		return v == 22.5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnsolicitedTelemetry(t *testing.T) {
	stove, s := connected(t, simulator.Config{})

	stove.PushFrame(protocol.StateData{On: true, Status: protocol.StatusModulation, PowerLevel: 2}.Frame(0))
	require.Eventually(t, func() bool {
		mode, _ := s.Snapshot().String(hottoh.AttrMode)
		return mode == hottoh.ModeOn
	}, time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	action, _ := snap.String(hottoh.AttrAction)
	assert.Equal(t, "heating", action)
	status, _ := snap.String(hottoh.AttrStatus)
	assert.Equal(t, "MODULATION", status)
}

func TestNoisyLink_SkipsMalformedFrames(t *testing.T) {
	_, s := connected(t, simulator.Config{Noise: true, ChunkSize: 3})

	require.NoError(t, s.SetEcoMode(context.Background(), true))
	c := s.Stats().Counters()
	assert.Greater(t, c.CRCErrors, uint64(0))
	assert.Greater(t, c.ValidFrames, uint64(0))
	assert.True(t, s.IsConnected())
}

func TestWaterAndPump(t *testing.T) {
	info := simulator.DefaultInfo
	info.WaterSensor = true
	info.Pump = true
	info.RoomSensors = 0b111
	info.FanCount = 3
	_, s := connected(t, simulator.Config{Info: info})

	require.Eventually(t, func() bool {
		_, ok := s.Get(hottoh.AttrWaterPump)
		return ok
	}, time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	water, ok := snap.Float(hottoh.AttrSetWaterTemp)
	require.True(t, ok)
	assert.Equal(t, 60.0, water)
	_, ok = snap.Float(hottoh.RoomTemperature(3))
	assert.True(t, ok)

	require.NoError(t, s.SetSpeedFan(context.Background(), 3, 1))
}

func TestErrorsMatchSentinels(t *testing.T) {
	err := &hottoh.CommandError{Kind: hottoh.KindRejected, Command: "x", Reason: "BUSY"}
	assert.True(t, errors.Is(err, hottoh.ErrRejected))
	assert.False(t, errors.Is(err, hottoh.ErrCommandTimeout))
	assert.Contains(t, err.Error(), "BUSY")

	cerr := &hottoh.ConnectionError{Op: "dial", Addr: "tcp://x"}
	assert.True(t, errors.Is(cerr, hottoh.ErrConnection))
	assert.False(t, errors.Is(cerr, hottoh.ErrTimeout))
}
