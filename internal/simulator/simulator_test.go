// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package simulator

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// exchange writes one frame to the stove over an in-memory pipe and
// returns every frame received until the line goes quiet.
func exchange(t *testing.T, s *Stove, f *protocol.Frame) []*protocol.Frame {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()
	go s.Serve(t.Context(), server)

	data, err := f.Encode()
	require.NoError(t, err)
	_, err = client.Write(data)
	require.NoError(t, err)

	d := protocol.NewDecoder()
	var frames []*protocol.Frame
	buf := make([]byte, 256)
	for {
		_ = client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := client.Read(buf)
		got, _ := d.Feed(buf[:n])
		frames = append(frames, got...)
		if err != nil {
			return frames
		}
	}
}

func types(frames []*protocol.Frame) []uint8 {
	out := make([]uint8, len(frames))
	for i, f := range frames {
		out[i] = f.Type()
	}
	return out
}

func TestStove_Handshake(t *testing.T) {
	s := New(Config{})
	frames := exchange(t, s, protocol.NewInfoRequest(3))
	require.Len(t, frames, 1)

	info, err := protocol.ParseDeviceInfo(frames[0])
	require.NoError(t, err)
	assert.Equal(t, DefaultInfo, info)
	assert.Equal(t, uint16(3), frames[0].Seq())
}

func TestStove_TelemetryMatchesHardware(t *testing.T) {
	info := DefaultInfo
	info.FanCount = 1
	info.WaterSensor = true
	s := New(Config{Info: info})

	frames := exchange(t, s, protocol.NewTelemetryRequest(1))
	assert.Equal(t, []uint8{
		protocol.MsgStateData,
		protocol.MsgTemperatureData, // smoke
		protocol.MsgFanData,         // smoke extractor
		protocol.MsgTemperatureData, // room 1
		protocol.MsgFanData,         // fan 1
		protocol.MsgTemperatureData, // water
	}, types(frames))
}

func TestStove_CommandAppliesThenAcks(t *testing.T) {
	s := New(Config{})
	cmd, err := protocol.SetPower(true).Frame(9)
	require.NoError(t, err)

	frames := exchange(t, s, cmd)
	require.Equal(t, []uint8{protocol.MsgStateData, protocol.MsgAck}, types(frames))
	assert.Equal(t, uint16(9), frames[1].Seq())
	assert.True(t, s.State().On)
	assert.Equal(t, protocol.StatusStarting, s.State().Status)
	assert.Equal(t, []protocol.Command{protocol.SetPower(true)}, s.Commands())
}

func TestStove_RejectsMissingFan(t *testing.T) {
	s := New(Config{})
	cmd, err := protocol.SetFanSpeed(3, 2).Frame(4)
	require.NoError(t, err)

	frames := exchange(t, s, cmd)
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(protocol.MsgErrorRejected), frames[0].Type())
	assert.Equal(t, protocol.RejectNotSupported, protocol.RejectReasonOf(frames[0]))
}

func TestStove_SilentNeverAnswers(t *testing.T) {
	s := New(Config{Silent: true})
	assert.Empty(t, exchange(t, s, protocol.NewInfoRequest(1)))
}

func TestStove_HeatsRoomWhenOn(t *testing.T) {
	s := New(Config{})
	s.apply(protocol.SetPower(true))
	s.apply(protocol.SetTemperature(1, 18))

	for i := 0; i < 2*IgnitionTicks; i++ {
		s.step()
	}
	assert.Equal(t, protocol.StatusPower, s.State().Status)

	for i := 0; i < 200 && s.State().Status == protocol.StatusPower; i++ {
		s.step()
	}
	assert.Equal(t, protocol.StatusModulation, s.State().Status)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.GreaterOrEqual(t, s.rooms[0].Value, 18.0)
	assert.Greater(t, s.smokeRPM, 0)
}

func TestStove_CoolsWhenOff(t *testing.T) {
	s := New(Config{})
	s.SetRoomTemperature(1, 20)
	s.step()
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Less(t, s.rooms[0].Value, 20.0)
	assert.Equal(t, 0, s.state.PowerLevel)
}
