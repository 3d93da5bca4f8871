// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

// Typed views over the stove → client payloads. Each type has a Frame
// builder (used by device emulators) and a Parse function (used by clients).

// DeviceInfo is the DEVICE_INFO handshake payload (0x30).
type DeviceInfo struct {
	Name         string
	Manufacturer string
	Model        string
	Firmware     string
	FanCount     int
	RoomSensors  uint8 // bit n-1 set when room sensor n is fitted
	WaterSensor  bool
	Pump         bool
}

// HasRoom reports whether room sensor n (1-3) is fitted.
func (d DeviceInfo) HasRoom(n int) bool {
	if n < SensorRoom1 || n > SensorRoom3 {
		return false
	}
	return d.RoomSensors&(1<<(n-1)) != 0
}

// Frame builds the DEVICE_INFO frame.
func (d DeviceInfo) Frame(seq uint16) *Frame {
	return NewFrame(seq, MsgDeviceInfo, map[int]any{
		0: d.Name,
		1: d.Manufacturer,
		2: d.Model,
		3: d.Firmware,
		4: uint64(d.FanCount),
		5: uint64(d.RoomSensors),
		6: d.WaterSensor,
		7: d.Pump,
	})
}

// ParseDeviceInfo decodes a DEVICE_INFO frame.
func ParseDeviceInfo(f *Frame) (DeviceInfo, error) {
	var d DeviceInfo
	if f.Type() != MsgDeviceInfo {
		return d, malformed("expected DEVICE_INFO, got 0x%02X", f.Type())
	}
	m := f.PayloadMap()
	fans, ok := GetMapUint(m, 4)
	if !ok || fans > MaxFanIndex {
		return d, malformed("DEVICE_INFO fan count missing or invalid")
	}
	rooms, ok := GetMapUint(m, 5)
	if !ok || rooms > 0x07 {
		return d, malformed("DEVICE_INFO room mask missing or invalid")
	}
	d.FanCount = int(fans)
	d.RoomSensors = uint8(rooms)
	d.Name, _ = GetMapString(m, 0)
	d.Manufacturer, _ = GetMapString(m, 1)
	d.Model, _ = GetMapString(m, 2)
	d.Firmware, _ = GetMapString(m, 3)
	d.WaterSensor, _ = GetMapBool(m, 6)
	d.Pump, _ = GetMapBool(m, 7)
	return d, nil
}

// StateData is the STATE_DATA payload (0x31).
type StateData struct {
	On            bool
	Status        StoveStatus
	Eco           bool
	Chrono        bool
	PowerLevel    int
	SetPowerLevel int
	MinPowerLevel int
	MaxPowerLevel int
}

// Frame builds the STATE_DATA frame.
func (s StateData) Frame(seq uint16) *Frame {
	return NewFrame(seq, MsgStateData, map[int]any{
		0: s.On,
		1: uint64(s.Status),
		2: s.Eco,
		3: s.Chrono,
		4: uint64(s.PowerLevel),
		5: uint64(s.SetPowerLevel),
		6: uint64(s.MinPowerLevel),
		7: uint64(s.MaxPowerLevel),
	})
}

// ParseStateData decodes a STATE_DATA frame.
func ParseStateData(f *Frame) (StateData, error) {
	var s StateData
	if f.Type() != MsgStateData {
		return s, malformed("expected STATE_DATA, got 0x%02X", f.Type())
	}
	m := f.PayloadMap()
	on, ok1 := GetMapBool(m, 0)
	status, ok2 := GetMapUint(m, 1)
	if !ok1 || !ok2 {
		return s, malformed("STATE_DATA missing on/status")
	}
	s.On = on
	s.Status = StoveStatus(status)
	s.Eco, _ = GetMapBool(m, 2)
	s.Chrono, _ = GetMapBool(m, 3)
	if v, ok := GetMapUint(m, 4); ok {
		s.PowerLevel = int(v)
	}
	if v, ok := GetMapUint(m, 5); ok {
		s.SetPowerLevel = int(v)
	}
	if v, ok := GetMapUint(m, 6); ok {
		s.MinPowerLevel = int(v)
	}
	if v, ok := GetMapUint(m, 7); ok {
		s.MaxPowerLevel = int(v)
	}
	return s, nil
}

// TemperatureData is the TEMPERATURE_DATA payload (0x32). Values are
// degrees Celsius; set point fields are only present for adjustable sensors.
type TemperatureData struct {
	Sensor int
	Value  float64
	HasSet bool
	Set    float64
	SetMin float64
	SetMax float64
}

// Frame builds the TEMPERATURE_DATA frame.
func (t TemperatureData) Frame(seq uint16) *Frame {
	payload := map[int]any{
		0: uint64(t.Sensor),
		1: Tenths(t.Value),
	}
	if t.HasSet {
		payload[2] = Tenths(t.Set)
		payload[3] = Tenths(t.SetMin)
		payload[4] = Tenths(t.SetMax)
	}
	return NewFrame(seq, MsgTemperatureData, payload)
}

// ParseTemperatureData decodes a TEMPERATURE_DATA frame.
func ParseTemperatureData(f *Frame) (TemperatureData, error) {
	var t TemperatureData
	if f.Type() != MsgTemperatureData {
		return t, malformed("expected TEMPERATURE_DATA, got 0x%02X", f.Type())
	}
	m := f.PayloadMap()
	sensor, ok1 := GetMapUint(m, 0)
	value, ok2 := GetMapTenths(m, 1)
	if !ok1 || !ok2 || sensor < SensorRoom1 || sensor > SensorSmoke {
		return t, malformed("TEMPERATURE_DATA missing or invalid sensor")
	}
	t.Sensor = int(sensor)
	t.Value = value
	if set, ok := GetMapTenths(m, 2); ok {
		t.HasSet = true
		t.Set = set
		t.SetMin, _ = GetMapTenths(m, 3)
		t.SetMax, _ = GetMapTenths(m, 4)
	}
	return t, nil
}

// FanData is the FAN_DATA payload (0x33). Fan FanSmoke is the smoke
// extractor, whose speed is in RPM and has no set point.
type FanData struct {
	Fan         int
	Speed       int
	SetSpeed    int
	AirExchange int
}

// Frame builds the FAN_DATA frame.
func (d FanData) Frame(seq uint16) *Frame {
	payload := map[int]any{
		0: uint64(d.Fan),
		1: uint64(d.Speed),
	}
	if d.Fan != FanSmoke {
		payload[2] = uint64(d.SetSpeed)
		payload[3] = uint64(d.AirExchange)
	}
	return NewFrame(seq, MsgFanData, payload)
}

// ParseFanData decodes a FAN_DATA frame.
func ParseFanData(f *Frame) (FanData, error) {
	var d FanData
	if f.Type() != MsgFanData {
		return d, malformed("expected FAN_DATA, got 0x%02X", f.Type())
	}
	m := f.PayloadMap()
	fan, ok1 := GetMapUint(m, 0)
	speed, ok2 := GetMapUint(m, 1)
	if !ok1 || !ok2 || fan > MaxFanIndex {
		return d, malformed("FAN_DATA missing or invalid fan")
	}
	d.Fan = int(fan)
	d.Speed = int(speed)
	if v, ok := GetMapUint(m, 2); ok {
		d.SetSpeed = int(v)
	}
	if v, ok := GetMapUint(m, 3); ok {
		d.AirExchange = int(v)
	}
	return d, nil
}

// NewPumpData creates a PUMP_DATA frame (0x34).
func NewPumpData(seq uint16, running bool) *Frame {
	return NewFrame(seq, MsgPumpData, map[int]any{0: running})
}

// ParsePumpData decodes a PUMP_DATA frame.
func ParsePumpData(f *Frame) (bool, error) {
	running, ok := GetMapBool(f.PayloadMap(), 0)
	if f.Type() != MsgPumpData || !ok {
		return false, malformed("invalid PUMP_DATA")
	}
	return running, nil
}

// NewAck creates an ACK frame (0x3E) echoing the command's sequence number.
func NewAck(seq uint16, msgType uint8) *Frame {
	return NewFrame(seq, MsgAck, map[int]any{0: uint64(msgType)})
}

// NewReject creates an ERROR_REJECTED frame (0xE0).
func NewReject(seq uint16, msgType uint8, reason RejectReason) *Frame {
	return NewFrame(seq, MsgErrorRejected, map[int]any{
		0: uint64(msgType),
		1: uint64(reason),
	})
}

// NewInvalidCommand creates an ERROR_INVALID_CMD frame (0xE1).
func NewInvalidCommand(seq uint16, msgType uint8) *Frame {
	return NewFrame(seq, MsgErrorInvalidCmd, map[int]any{0: uint64(msgType)})
}

// RejectReasonOf returns the reason code carried by an error frame.
func RejectReasonOf(f *Frame) RejectReason {
	if f.Type() == MsgErrorInvalidCmd {
		return RejectNotSupported
	}
	v, _ := GetMapUint(f.PayloadMap(), 1)
	return RejectReason(v)
}

// NewPingResponse creates a PING_RESPONSE frame (0x3F).
func NewPingResponse(seq uint16, uptimeMs uint64) *Frame {
	return NewFrame(seq, MsgPingResponse, map[int]any{0: uptimeMs})
}
