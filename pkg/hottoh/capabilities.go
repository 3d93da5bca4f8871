// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import (
	"sync"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// Capabilities describes the hardware fitted to the connected stove. It is
// learned from the handshake and does not change for the life of a
// connection.
type Capabilities struct {
	Name         string
	Manufacturer string
	Model        string
	Firmware     string
	FanCount     int
	RoomSensors  uint8
	WaterSensor  bool
	Pump         bool
}

func capabilitiesFrom(info protocol.DeviceInfo) Capabilities {
	return Capabilities{
		Name:         info.Name,
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Firmware:     info.Firmware,
		FanCount:     info.FanCount,
		RoomSensors:  info.RoomSensors,
		WaterSensor:  info.WaterSensor,
		Pump:         info.Pump,
	}
}

// HasFan reports whether fan n (1-3) exists.
func (c Capabilities) HasFan(n int) bool {
	return n >= 1 && n <= c.FanCount
}

// HasRoomSensor reports whether room sensor n (1-3) is fitted.
func (c Capabilities) HasRoomSensor(n int) bool {
	if n < 1 || n > 3 {
		return false
	}
	return c.RoomSensors&(1<<(n-1)) != 0
}

// HasWaterSensor reports whether a water temperature sensor is fitted.
func (c Capabilities) HasWaterSensor() bool {
	return c.WaterSensor
}

// HasPump reports whether a water pump is fitted.
func (c Capabilities) HasPump() bool {
	return c.Pump
}

// supports checks a command against the fitted hardware.
func (c Capabilities) supports(cmd protocol.Command) bool {
	switch cmd.Kind {
	case protocol.CmdSetFanSpeed:
		return c.HasFan(cmd.Target)
	case protocol.CmdSetTemperature:
		return c.HasRoomSensor(cmd.Target)
	}
	return true
}

// descriptor is populated once per connection by the read loop.
type descriptor struct {
	once  sync.Once
	ready chan struct{}
	mu    sync.RWMutex
	caps  Capabilities
	set   bool
}

func newDescriptor() *descriptor {
	return &descriptor{ready: make(chan struct{})}
}

// populate stores caps; calls after the first are ignored.
func (d *descriptor) populate(caps Capabilities) {
	d.once.Do(func() {
		d.mu.Lock()
		d.caps = caps
		d.set = true
		d.mu.Unlock()
		close(d.ready)
	})
}

func (d *descriptor) get() (Capabilities, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.caps, d.set
}
