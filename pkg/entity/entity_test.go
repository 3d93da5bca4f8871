// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package entity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

type fakeReader struct {
	values    map[hottoh.Attribute]any
	connected bool
}

func (f *fakeReader) Get(a hottoh.Attribute) (hottoh.Reading, bool) {
	v, ok := f.values[a]
	return hottoh.Reading{Value: v}, ok
}

func (f *fakeReader) IsConnected() bool { return f.connected }

type fakeCommander struct {
	sent []protocol.Command
	err  error
}

func (f *fakeCommander) Send(_ context.Context, cmd protocol.Command) error {
	f.sent = append(f.sent, cmd)
	return f.err
}

var stove = hottoh.Capabilities{
	Name:         "Living room",
	Manufacturer: "HottoH",
	Firmware:     "2.1",
	FanCount:     2,
	RoomSensors:  0b101,
	WaterSensor:  true,
	Pump:         true,
}

func attributes(entities []Entity) []hottoh.Attribute {
	out := make([]hottoh.Attribute, len(entities))
	for i, e := range entities {
		out[i] = e.Attribute
	}
	return out
}

// ============================================================================
// Platform setup
// ============================================================================

func TestSensors_FollowHardware(t *testing.T) {
	assert.Equal(t, []hottoh.Attribute{
		hottoh.AttrAction,
		hottoh.AttrSmokeTemp,
		hottoh.AttrSmokeFanSpeed,
		hottoh.RoomTemperature(1),
		hottoh.RoomTemperature(3),
		hottoh.AttrWaterTemp,
		hottoh.FanSpeed(1),
		hottoh.AirExchange(1),
		hottoh.FanSpeed(2),
		hottoh.AirExchange(2),
		hottoh.AttrPowerLevel,
	}, attributes(Sensors(stove)))

	bare := hottoh.Capabilities{Name: "Bare"}
	assert.Equal(t, []hottoh.Attribute{
		hottoh.AttrAction,
		hottoh.AttrSmokeTemp,
		hottoh.AttrSmokeFanSpeed,
		hottoh.AttrPowerLevel,
	}, attributes(Sensors(bare)))
}

func TestBinarySensors_OnlyWithPump(t *testing.T) {
	assert.Equal(t, []hottoh.Attribute{hottoh.AttrWaterPump}, attributes(BinarySensors(stove)))
	assert.Empty(t, BinarySensors(hottoh.Capabilities{}))
}

func TestEntity_NamesAndDescriptors(t *testing.T) {
	e := Sensors(stove)[3]
	assert.Equal(t, "Living room temperature_room_1", e.Name)
	assert.Equal(t, "Living room_temperature_room_1", e.UniqueID)
	assert.Equal(t, ClassTemperature, e.DeviceClass)
	assert.Equal(t, UnitCelsius, e.Unit)
	assert.Equal(t, "mdi:thermometer", e.Icon)

	d, ok := Lookup(hottoh.FanSpeed(3))
	require.True(t, ok)
	assert.Equal(t, hottoh.SetFanSpeed(3), d.Set)

	_, ok = Lookup("no_such_attribute")
	assert.False(t, ok)
}

func TestEntity_StateAndAttributes(t *testing.T) {
	r := &fakeReader{connected: true, values: map[hottoh.Attribute]any{
		hottoh.RoomTemperature(1):       19.5,
		hottoh.SetRoomTemperature(1):    21.0,
		hottoh.SetMinRoomTemperature(1): 15.0,
	}}
	e := newEntity("Stove", hottoh.RoomTemperature(1))

	v, ok := e.State(r)
	require.True(t, ok)
	assert.Equal(t, 19.5, v)
	assert.Equal(t, map[string]any{"set_value": 21.0, "min_value": 15.0}, e.Attributes(r))
	assert.True(t, e.Available(r))

	smoke := newEntity("Stove", hottoh.AttrSmokeTemp)
	_, ok = smoke.State(r)
	assert.False(t, ok)
	assert.Empty(t, smoke.Attributes(r))

	r.connected = false
	assert.False(t, e.Available(r))
}

func TestSwitch_IconAndTurn(t *testing.T) {
	power := Switches(stove)[0]
	r := &fakeReader{values: map[hottoh.Attribute]any{hottoh.AttrIsOn: false}}
	assert.Equal(t, "mdi:fireplace-off", power.IconFor(r))
	r.values[hottoh.AttrIsOn] = true
	assert.Equal(t, "mdi:fireplace", power.IconFor(r))

	c := &fakeCommander{}
	for _, sw := range Switches(stove) {
		require.NoError(t, sw.Turn(context.Background(), c, true))
	}
	assert.Equal(t, []protocol.Command{
		protocol.SetPower(true),
		protocol.SetEcoMode(true),
		protocol.SetChronoMode(true),
	}, c.sent)

	err := Sensors(stove)[0].Turn(context.Background(), c, true)
	assert.Error(t, err)
}

func TestDevice(t *testing.T) {
	d := Device(stove)
	assert.Equal(t, [][2]string{{Domain, "Living room"}}, d.Identifiers)
	assert.Equal(t, "2.1", d.SWVersion)
	assert.Equal(t, "HottoH", d.Model)

	withModel := stove
	withModel.Model = "Giulia"
	assert.Equal(t, "Giulia", Device(withModel).Model)
}

// ============================================================================
// Climate
// ============================================================================

func TestClimate_Readings(t *testing.T) {
	c := NewClimate(stove, DefaultPresets)
	r := &fakeReader{values: map[hottoh.Attribute]any{
		hottoh.RoomTemperature(1):    18.5,
		hottoh.SetRoomTemperature(1): 21.0,
		hottoh.AttrMode:              hottoh.ModeOn,
		hottoh.AttrAction:            string(protocol.ActionHeating),
		hottoh.SetFanSpeed(1):        4,
	}}

	cur, ok := c.CurrentTemperature(r)
	require.True(t, ok)
	assert.Equal(t, 18.5, cur)
	target, ok := c.TargetTemperature(r)
	require.True(t, ok)
	assert.Equal(t, 21.0, target)
	assert.Equal(t, HVACHeat, c.HVACMode(r))
	assert.Equal(t, "heating", c.HVACAction(r))
	assert.Equal(t, "mdi:fireplace", c.Icon(r))
	assert.Equal(t, "4", c.FanMode(r))
	assert.Equal(t, "hottohLiving room", c.UniqueID)

	empty := &fakeReader{}
	assert.Equal(t, HVACOff, c.HVACMode(empty))
	assert.Equal(t, "off", c.HVACAction(empty))
	assert.Equal(t, "", c.FanMode(empty))
	_, ok = c.CurrentTemperature(empty)
	assert.False(t, ok)
}

func TestClimate_Presets(t *testing.T) {
	tests := []struct {
		preset string
		temp   float64
		eco    bool
	}{
		{PresetAway, 15, true},
		{PresetEco, 18, true},
		{PresetComfort, 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			c := NewClimate(stove, DefaultPresets)
			cmd := &fakeCommander{}
			require.NoError(t, c.SetPresetMode(context.Background(), cmd, tt.preset))
			assert.Equal(t, []protocol.Command{
				protocol.SetTemperature(1, tt.temp),
				protocol.SetEcoMode(tt.eco),
			}, cmd.sent)
			assert.Equal(t, tt.preset, c.PresetMode())
		})
	}
}

func TestClimate_PresetModes(t *testing.T) {
	c := NewClimate(stove, DefaultPresets)
	assert.Equal(t, []string{PresetNone, PresetAway, PresetEco, PresetComfort}, c.PresetModes())

	partial := NewClimate(stove, Presets{Comfort: 21})
	assert.Equal(t, []string{PresetNone, PresetComfort}, partial.PresetModes())

	cmd := &fakeCommander{}
	assert.Error(t, partial.SetPresetMode(context.Background(), cmd, PresetAway))
	assert.Empty(t, cmd.sent)
	assert.Equal(t, PresetNone, partial.PresetMode())

	require.NoError(t, partial.SetPresetMode(context.Background(), cmd, PresetNone))
	assert.Empty(t, cmd.sent)
}

func TestClimate_PresetStopsOnFailure(t *testing.T) {
	c := NewClimate(stove, DefaultPresets)
	cmd := &fakeCommander{err: errors.New("stove busy")}
	assert.Error(t, c.SetPresetMode(context.Background(), cmd, PresetEco))
	assert.Len(t, cmd.sent, 1)
	assert.Equal(t, PresetNone, c.PresetMode())
}

func TestClimate_Commands(t *testing.T) {
	c := NewClimate(stove, DefaultPresets)
	cmd := &fakeCommander{}
	ctx := context.Background()

	require.NoError(t, c.SetHVACMode(ctx, cmd, HVACHeat))
	require.NoError(t, c.SetHVACMode(ctx, cmd, HVACOff))
	require.NoError(t, c.SetTemperature(ctx, cmd, 22.5))
	require.NoError(t, c.SetFanMode(ctx, cmd, "3"))
	assert.Error(t, c.SetHVACMode(ctx, cmd, "cool"))
	assert.Error(t, c.SetFanMode(ctx, cmd, "turbo"))

	assert.Equal(t, []protocol.Command{
		protocol.SetPower(true),
		protocol.SetPower(false),
		protocol.SetTemperature(1, 22.5),
		protocol.SetFanSpeed(1, 3),
	}, cmd.sent)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6"}, c.FanModes())
	assert.Equal(t, []string{HVACHeat, HVACOff}, c.HVACModes())
}

// ============================================================================
// Services
// ============================================================================

func TestServices_FanServicesFollowFanCount(t *testing.T) {
	names := func(caps hottoh.Capabilities) []string {
		var out []string
		for _, s := range Services(caps) {
			out = append(out, s.Name)
		}
		return out
	}
	assert.Contains(t, names(stove), "set_speed_fan_2")
	assert.NotContains(t, names(stove), "set_speed_fan_3")
	assert.NotContains(t, names(hottoh.Capabilities{}), "set_speed_fan_1")
	assert.Len(t, Services(hottoh.Capabilities{FanCount: 3}), 11)
}

func TestCallService(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  protocol.Command
	}{
		{"set_temperature", 21.5, protocol.SetTemperature(1, 21.5)},
		{"set_power_level", 4, protocol.SetPowerLevel(4)},
		{"set_speed_fan_2", 5, protocol.SetFanSpeed(2, 5)},
		{"eco_mode_turn_on", 0, protocol.SetEcoMode(true)},
		{"eco_mode_turn_off", 0, protocol.SetEcoMode(false)},
		{"chrono_mode_turn_on", 0, protocol.SetChronoMode(true)},
		{"chrono_mode_turn_off", 0, protocol.SetChronoMode(false)},
		{"turn_on", 0, protocol.SetPower(true)},
		{"turn_off", 0, protocol.SetPower(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &fakeCommander{}
			require.NoError(t, CallService(context.Background(), cmd, stove, tt.name, tt.value))
			assert.Equal(t, []protocol.Command{tt.want}, cmd.sent)
		})
	}
}

func TestCallService_FractionalValuesAreNotRounded(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"set_power_level", 2.7},
		{"set_power_level", math.NaN()},
		{"set_speed_fan_1", 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &fakeCommander{}
			require.NoError(t, CallService(context.Background(), cmd, stove, tt.name, tt.value))
			require.Len(t, cmd.sent, 1)
			assert.ErrorIs(t, cmd.sent[0].Validate(), protocol.ErrOutOfRange)
		})
	}
}

func TestCallService_Unknown(t *testing.T) {
	cmd := &fakeCommander{}
	err := CallService(context.Background(), cmd, stove, "set_speed_fan_3", 2)
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.Empty(t, cmd.sent)
}
