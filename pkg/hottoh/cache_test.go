// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

func TestCache_GetMissing(t *testing.T) {
	c := NewCache()
	_, ok := c.Get(AttrIsOn)
	assert.False(t, ok)
	assert.Zero(t, c.Version())
	assert.Zero(t, c.Len())
}

func TestCache_ApplyBumpsVersionAndWakesWatchers(t *testing.T) {
	c := NewCache()
	version, changed := c.Watch()
	require.Zero(t, version)

	at := time.Date(2025, 11, 2, 18, 30, 0, 0, time.UTC)
	c.apply(map[Attribute]any{AttrIsOn: true, AttrPowerLevel: 3}, at)

	select {
	case <-changed:
	default:
		t.Fatal("watch channel not closed after apply")
	}
	assert.Equal(t, uint64(1), c.Version())

	r, ok := c.Get(AttrPowerLevel)
	require.True(t, ok)
	assert.Equal(t, 3, r.Value)
	assert.Equal(t, at, r.Updated)

	// A fresh watch waits for the next group
	_, next := c.Watch()
	select {
	case <-next:
		t.Fatal("new watch channel already closed")
	default:
	}
}

func TestCache_EmptyUpdateIsIgnored(t *testing.T) {
	c := NewCache()
	_, changed := c.Watch()
	c.apply(nil, time.Now())
	assert.Zero(t, c.Version())
	select {
	case <-changed:
		t.Fatal("empty update woke watchers")
	default:
	}
}

func TestCache_SnapshotIsACopy(t *testing.T) {
	c := NewCache()
	c.apply(map[Attribute]any{AttrStatus: "OFF"}, time.Now())

	snap := c.Snapshot()
	snap[AttrStatus] = Reading{Value: "POWER"}
	c.apply(map[Attribute]any{AttrEcoMode: true}, time.Now())

	status, _ := c.Snapshot().String(AttrStatus)
	assert.Equal(t, "OFF", status)
	_, ok := snap[AttrEcoMode]
	assert.False(t, ok)
}

func TestCache_GroupsAreAtomic(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			c.apply(map[Attribute]any{
				SetRoomTemperature(1):    float64(i),
				SetMinRoomTemperature(1): float64(i),
			}, time.Now())
		}
	}()

	for i := 0; i < 200; i++ {
		snap := c.Snapshot()
		set, ok1 := snap.Float(SetRoomTemperature(1))
		lo, ok2 := snap.Float(SetMinRoomTemperature(1))
		require.Equal(t, ok1, ok2)
		require.Equal(t, set, lo)
	}
	wg.Wait()
}

func TestSnapshot_TypedAccessors(t *testing.T) {
	snap := Snapshot{
		AttrPowerLevel:           {Value: 4},
		RoomTemperature(1):       {Value: 21.5},
		AttrIsOn:                 {Value: true},
		AttrStatus:               {Value: "POWER"},
		SetRoomTemperature(1):    {Value: "bogus"},
		AttrSetWaterTemp:         {Value: 60},
		AttrSmokeFanSpeed:        {Value: 1450},
		SetMaxRoomTemperature(1): {Value: nil},
	}

	f, ok := snap.Float(RoomTemperature(1))
	assert.True(t, ok)
	assert.Equal(t, 21.5, f)

	f, ok = snap.Float(AttrSetWaterTemp)
	assert.True(t, ok, "ints read as floats")
	assert.Equal(t, 60.0, f)

	_, ok = snap.Float(SetRoomTemperature(1))
	assert.False(t, ok)
	_, ok = snap.Float(SetMaxRoomTemperature(1))
	assert.False(t, ok)

	n, ok := snap.Int(AttrPowerLevel)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	_, ok = snap.Int(RoomTemperature(1))
	assert.False(t, ok, "floats do not read as ints")

	b, ok := snap.Bool(AttrIsOn)
	assert.True(t, ok)
	assert.True(t, b)

	s, ok := snap.String(AttrStatus)
	assert.True(t, ok)
	assert.Equal(t, "POWER", s)

	_, ok = snap.Bool(AttrEcoMode)
	assert.False(t, ok)
}

func TestCapabilities(t *testing.T) {
	caps := capabilitiesFrom(protocol.DeviceInfo{
		Name:        "Living room",
		FanCount:    2,
		RoomSensors: 0b101,
		WaterSensor: true,
	})

	assert.Equal(t, "Living room", caps.Name)
	assert.True(t, caps.HasFan(1))
	assert.True(t, caps.HasFan(2))
	assert.False(t, caps.HasFan(3))
	assert.False(t, caps.HasFan(0))

	assert.True(t, caps.HasRoomSensor(1))
	assert.False(t, caps.HasRoomSensor(2))
	assert.True(t, caps.HasRoomSensor(3))
	assert.False(t, caps.HasRoomSensor(4))

	assert.True(t, caps.HasWaterSensor())
	assert.False(t, caps.HasPump())

	tests := []struct {
		cmd  protocol.Command
		want bool
	}{
		{protocol.SetFanSpeed(2, 4), true},
		{protocol.SetFanSpeed(3, 4), false},
		{protocol.SetTemperature(3, 20), true},
		{protocol.SetTemperature(2, 20), false},
		{protocol.SetPowerLevel(2), true},
		{protocol.SetPower(true), true},
		{protocol.SetChronoMode(false), true},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, caps.supports(tt.cmd))
		})
	}
}

func TestDescriptor_PopulatesOnce(t *testing.T) {
	d := newDescriptor()
	_, ok := d.get()
	assert.False(t, ok)

	d.populate(Capabilities{Name: "first", FanCount: 1})
	d.populate(Capabilities{Name: "second", FanCount: 3})

	select {
	case <-d.ready:
	default:
		t.Fatal("ready not closed")
	}
	caps, ok := d.get()
	assert.True(t, ok)
	assert.Equal(t, "first", caps.Name)
	assert.Equal(t, 1, caps.FanCount)
}

func TestConfirmed(t *testing.T) {
	c := NewCache()
	c.apply(map[Attribute]any{
		SetRoomTemperature(1): 21.5,
		AttrSetPowerLevel:     3,
		SetFanSpeed(1):        0,
		AttrIsOn:              true,
		AttrEcoMode:           false,
		AttrChronoMode:        true,
	}, time.Now())

	tests := []struct {
		cmd  protocol.Command
		want bool
	}{
		{protocol.SetTemperature(1, 21.5), true},
		{protocol.SetTemperature(1, 22), false},
		{protocol.SetTemperature(2, 21.5), false},
		{protocol.SetPowerLevel(3), true},
		{protocol.SetPowerLevel(4), false},
		{protocol.SetFanSpeed(1, 0), true},
		{protocol.SetFanSpeed(2, 0), false},
		{protocol.SetPower(true), true},
		{protocol.SetPower(false), false},
		{protocol.SetEcoMode(false), true},
		{protocol.SetChronoMode(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, confirmed(tt.cmd, c))
		})
	}
}

func TestTelemetryUpdate(t *testing.T) {
	t.Run("state", func(t *testing.T) {
		f := protocol.StateData{
			On: true, Status: protocol.StatusPower, Eco: true, PowerLevel: 4,
			SetPowerLevel: 4, MinPowerLevel: 1, MaxPowerLevel: 5,
		}.Frame(1)
		update, err := telemetryUpdate(decoded(t, f))
		require.NoError(t, err)
		assert.Equal(t, true, update[AttrIsOn])
		assert.Equal(t, ModeOn, update[AttrMode])
		assert.Equal(t, "POWER", update[AttrStatus])
		assert.Equal(t, string(protocol.ActionHeating), update[AttrAction])
		assert.Equal(t, 4, update[AttrSetPowerLevel])
		assert.Equal(t, 5, update[AttrSetMaxPower])
	})

	t.Run("water sensor", func(t *testing.T) {
		f := protocol.TemperatureData{
			Sensor: protocol.SensorWater, Value: 55, HasSet: true, Set: 60, SetMin: 40, SetMax: 80,
		}.Frame(2)
		update, err := telemetryUpdate(decoded(t, f))
		require.NoError(t, err)
		assert.Equal(t, 55.0, update[AttrWaterTemp])
		assert.Equal(t, 60.0, update[AttrSetWaterTemp])
		assert.Equal(t, 80.0, update[AttrSetMaxWater])
	})

	t.Run("smoke fan", func(t *testing.T) {
		f := protocol.FanData{Fan: protocol.FanSmoke, Speed: 1450}.Frame(3)
		update, err := telemetryUpdate(decoded(t, f))
		require.NoError(t, err)
		assert.Equal(t, map[Attribute]any{AttrSmokeFanSpeed: 1450}, update)
	})

	t.Run("room fan", func(t *testing.T) {
		f := protocol.FanData{Fan: 2, Speed: 3, SetSpeed: 4, AirExchange: 70}.Frame(4)
		update, err := telemetryUpdate(decoded(t, f))
		require.NoError(t, err)
		assert.Equal(t, 3, update[FanSpeed(2)])
		assert.Equal(t, 4, update[SetFanSpeed(2)])
		assert.Equal(t, 70, update[AirExchange(2)])
	})

	t.Run("unhandled", func(t *testing.T) {
		_, err := telemetryUpdate(decoded(t, protocol.NewAck(5, protocol.MsgSetPower)))
		assert.Error(t, err)
	})
}

// decoded sends f through the wire encoding so its payload is parsed the
// way the read loop sees it.
func decoded(t *testing.T, f *protocol.Frame) *protocol.Frame {
	t.Helper()
	data, err := f.Encode()
	require.NoError(t, err)
	out, n, err := protocol.DecodeFrame(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	return out
}
