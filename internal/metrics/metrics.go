// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package metrics exports the session's cached telemetry and link counters
// to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

const namespace = "hottoh"

// Source is what the collector reads on every scrape. *hottoh.Session
// satisfies it.
type Source interface {
	IsConnected() bool
	Snapshot() hottoh.Snapshot
	Capabilities() (hottoh.Capabilities, bool)
	Stats() *protocol.Statistics
	CommandStats() hottoh.CommandStats
}

// Collector reads the state cache at scrape time. It never talks to the
// stove.
type Collector struct {
	src Source

	connected      *prometheus.Desc
	info           *prometheus.Desc
	temperature    *prometheus.Desc
	setTemperature *prometheus.Desc
	powerLevel     *prometheus.Desc
	setPowerLevel  *prometheus.Desc
	fanSpeed       *prometheus.Desc
	airExchange    *prometheus.Desc
	smokeFanRPM    *prometheus.Desc
	flag           *prometheus.Desc
	status         *prometheus.Desc
	uptime         *prometheus.Desc
	frames         *prometheus.Desc
	commands       *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:            src,
		connected:      desc("connected", "Session connected (1) or not (0)"),
		info:           desc("info", "Stove identity from the handshake", "name", "manufacturer", "model", "firmware"),
		temperature:    desc("temperature_celsius", "Measured temperature", "sensor"),
		setTemperature: desc("set_temperature_celsius", "Temperature set point", "sensor"),
		powerLevel:     desc("power_level", "Current combustion power level"),
		setPowerLevel:  desc("set_power_level", "Requested combustion power level"),
		fanSpeed:       desc("fan_speed", "Fan speed step", "fan"),
		airExchange:    desc("air_exchange_percent", "Fan air exchange", "fan"),
		smokeFanRPM:    desc("smoke_fan_rpm", "Smoke extractor speed"),
		flag:           desc("flag", "Boolean stove state (1=on)", "flag"),
		status:         desc("status", "Stove status (1 for the current status)", "status"),
		uptime:         desc("uptime_seconds", "Controller uptime reported by the last ping"),
		frames:         desc("frames_total", "Frames received by outcome", "result"),
		commands:       desc("commands_total", "Commands by outcome", "result"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.connected, c.info, c.temperature, c.setTemperature, c.powerLevel,
		c.setPowerLevel, c.fanSpeed, c.airExchange, c.smokeFanRPM, c.flag,
		c.status, c.uptime, c.frames, c.commands,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	gauge(c.connected, boolValue(c.src.IsConnected()))

	if caps, ok := c.src.Capabilities(); ok {
		gauge(c.info, 1, caps.Name, caps.Manufacturer, caps.Model, caps.Firmware)
	}

	snap := c.src.Snapshot()
	floatGauge := func(d *prometheus.Desc, a hottoh.Attribute, labels ...string) {
		if v, ok := snap.Float(a); ok {
			gauge(d, v, labels...)
		}
	}

	floatGauge(c.temperature, hottoh.AttrSmokeTemp, "smoke")
	floatGauge(c.temperature, hottoh.AttrWaterTemp, "water")
	floatGauge(c.setTemperature, hottoh.AttrSetWaterTemp, "water")
	for n := 1; n <= 3; n++ {
		sensor := "room_" + strconv.Itoa(n)
		floatGauge(c.temperature, hottoh.RoomTemperature(n), sensor)
		floatGauge(c.setTemperature, hottoh.SetRoomTemperature(n), sensor)
		fan := strconv.Itoa(n)
		floatGauge(c.fanSpeed, hottoh.FanSpeed(n), fan)
		floatGauge(c.airExchange, hottoh.AirExchange(n), fan)
	}
	floatGauge(c.powerLevel, hottoh.AttrPowerLevel)
	floatGauge(c.setPowerLevel, hottoh.AttrSetPowerLevel)
	floatGauge(c.smokeFanRPM, hottoh.AttrSmokeFanSpeed)
	floatGauge(c.uptime, hottoh.AttrUptime)

	for _, a := range []hottoh.Attribute{hottoh.AttrIsOn, hottoh.AttrEcoMode, hottoh.AttrChronoMode, hottoh.AttrWaterPump} {
		if v, ok := snap.Bool(a); ok {
			gauge(c.flag, boolValue(v), string(a))
		}
	}
	if current, ok := snap.String(hottoh.AttrStatus); ok {
		for s := protocol.StatusOff; s <= protocol.StatusAlarm; s++ {
			gauge(c.status, boolValue(s.String() == current), s.String())
		}
	}

	fc := c.src.Stats().Counters()
	counter(c.frames, fc.ValidFrames, "valid")
	counter(c.frames, fc.CRCErrors, "crc_error")
	counter(c.frames, fc.DecodeErrors, "decode_error")
	counter(c.frames, fc.MalformedFrames, "malformed")
	counter(c.frames, fc.AnomalousValues, "anomalous")

	cs := c.src.CommandStats()
	counter(c.commands, cs.Sent, "sent")
	counter(c.commands, cs.Confirmed, "confirmed")
	counter(c.commands, cs.Timeouts, "timeout")
	counter(c.commands, cs.Rejected, "rejected")
	counter(c.commands, cs.NotConnected, "not_connected")
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// NewRegistry returns a registry holding the collector and the Go runtime
// collectors.
func NewRegistry(src Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(src))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
