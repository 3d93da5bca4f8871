// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package simulator emulates a HottoH stove controller speaking the wire
// protocol, for tests and for running the tooling without hardware.
package simulator

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// ----------- Simulation constants -----------
const (
	AmbientC         = 16.0 // room temperature with the stove off
	RoomRampPerTick  = 0.1  // °C per tick while heating
	RoomDriftPerTick = 0.05 // °C per tick cooling toward ambient
	SmokeRampPerTick = 4.0  // °C per tick while burning
	IgnitionTicks    = 5    // ticks spent in each start-up phase
)

// Config controls how the simulated stove behaves.
type Config struct {
	Info protocol.DeviceInfo
	// Silent stoves accept connections but never answer.
	Silent bool
	// IgnoreCommands drops command frames without acknowledging or applying them.
	IgnoreCommands bool
	// TelemetryOnly applies commands but confirms them only through
	// telemetry, never with an ACK frame.
	TelemetryOnly bool
	// ConfirmDelay is how long the stove takes to act on or reject a command.
	ConfirmDelay time.Duration
	// Reject answers the listed message types with ERROR_REJECTED.
	Reject map[uint8]protocol.RejectReason
	// Noise prefixes every reply with junk bytes and a corrupted frame.
	Noise bool
	// ChunkSize splits every write into pieces of at most this many bytes.
	ChunkSize int
	Logger    *zap.Logger
}

// DefaultInfo is a two-fan stove with one room sensor and no hydronic kit.
var DefaultInfo = protocol.DeviceInfo{
	Name:         "Simulated stove",
	Manufacturer: "HottoH",
	Model:        "SIM-1",
	Firmware:     "1.0.0",
	FanCount:     2,
	RoomSensors:  0b001,
}

// Stove is a simulated controller. It can serve any number of connections.
type Stove struct {
	cfg     Config
	log     *zap.Logger
	started time.Time

	mu       sync.Mutex
	state    protocol.StateData
	rooms    [3]protocol.TemperatureData
	water    protocol.TemperatureData
	smoke    protocol.TemperatureData
	fans     [3]protocol.FanData
	smokeRPM int
	pump     bool
	phase    int

	commands    []protocol.Command
	inFlight    int
	maxInFlight int

	connMu sync.Mutex
	conns  map[*stoveConn]struct{}
	wg     sync.WaitGroup
}

type stoveConn struct {
	rw      io.ReadWriteCloser
	writeMu sync.Mutex
}

// New creates a stove that is switched off and sitting at ambient temperature.
func New(cfg Config) *Stove {
	if cfg.Info.FanCount == 0 && cfg.Info.RoomSensors == 0 {
		cfg.Info = DefaultInfo
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stove{
		cfg:     cfg,
		log:     log,
		started: time.Now(),
		conns:   make(map[*stoveConn]struct{}),
		state: protocol.StateData{
			Status:        protocol.StatusOff,
			PowerLevel:    0,
			SetPowerLevel: 3,
			MinPowerLevel: protocol.MinPowerLevel,
			MaxPowerLevel: protocol.MaxPowerLevel,
		},
		smoke: protocol.TemperatureData{Sensor: protocol.SensorSmoke, Value: AmbientC},
		water: protocol.TemperatureData{
			Sensor: protocol.SensorWater, Value: 30, HasSet: true, Set: 60, SetMin: 40, SetMax: 80,
		},
	}
	for i := range s.rooms {
		s.rooms[i] = protocol.TemperatureData{
			Sensor: i + 1, Value: AmbientC, HasSet: true,
			Set: 20, SetMin: protocol.MinTemperature, SetMax: protocol.MaxTemperature,
		}
	}
	for i := range s.fans {
		s.fans[i] = protocol.FanData{Fan: i + 1}
	}
	return s
}

// Info returns the handshake payload the stove advertises.
func (s *Stove) Info() protocol.DeviceInfo {
	return s.cfg.Info
}

// Listen starts accepting TCP connections on addr ("127.0.0.1:0" picks a
// free port). Connections are served until ctx is canceled.
func (s *Stove) Listen(ctx context.Context, addr string) (net.Addr, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		_ = ln.Close()
		s.closeAll()
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					s.log.Warn("accept failed", zap.Error(err))
				}
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.Serve(ctx, conn)
			}()
		}
	}()
	s.log.Info("simulated stove listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Wait blocks until every goroutine started by Listen has exited.
func (s *Stove) Wait() {
	s.wg.Wait()
}

// Serve answers requests arriving on rw until it is closed or ctx ends.
func (s *Stove) Serve(ctx context.Context, rw io.ReadWriteCloser) {
	c := &stoveConn{rw: rw}
	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		delete(s.conns, c)
		s.connMu.Unlock()
		_ = rw.Close()
	}()

	decoder := protocol.NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := rw.Read(buf)
		for _, f := range decodeFrames(decoder, buf[:n]) {
			if ctx.Err() != nil {
				return
			}
			s.handle(c, f)
		}
		if err != nil {
			return
		}
	}
}

func decodeFrames(d *protocol.Decoder, data []byte) []*protocol.Frame {
	frames, _ := d.Feed(data)
	return frames
}

func (s *Stove) closeAll() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for c := range s.conns {
		_ = c.rw.Close()
	}
}

// DropConnections closes every open connection, as a power cut would.
func (s *Stove) DropConnections() {
	s.closeAll()
}

func (s *Stove) handle(c *stoveConn, f *protocol.Frame) {
	if s.cfg.Silent {
		return
	}
	seq := f.Seq()
	switch f.Type() {
	case protocol.MsgInfoRequest:
		s.send(c, s.cfg.Info.Frame(seq))
	case protocol.MsgTelemetryRequest:
		s.send(c, s.telemetry(seq)...)
	case protocol.MsgPingRequest:
		s.send(c, protocol.NewPingResponse(seq, uint64(time.Since(s.started).Milliseconds())))
	default:
		if !f.IsCommand() {
			s.send(c, protocol.NewInvalidCommand(seq, f.Type()))
			return
		}
		s.handleCommand(c, f)
	}
}

func (s *Stove) handleCommand(c *stoveConn, f *protocol.Frame) {
	seq := f.Seq()
	cmd, err := protocol.ParseCommand(f)
	if err != nil {
		s.send(c, protocol.NewReject(seq, f.Type(), protocol.RejectOutOfRange))
		return
	}

	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()

	if s.cfg.IgnoreCommands {
		return
	}
	if reason, ok := s.cfg.Reject[f.Type()]; ok {
		reject := func() { s.send(c, protocol.NewReject(seq, f.Type(), reason)) }
		if s.cfg.ConfirmDelay > 0 {
			time.AfterFunc(s.cfg.ConfirmDelay, reject)
		} else {
			reject()
		}
		return
	}
	if cmd.Kind == protocol.CmdSetFanSpeed && cmd.Target > s.cfg.Info.FanCount {
		s.send(c, protocol.NewReject(seq, f.Type(), protocol.RejectNotSupported))
		return
	}

	s.mu.Lock()
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()

	confirm := func() {
		changed := s.apply(cmd)
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
		s.broadcast(changed)
		if !s.cfg.TelemetryOnly {
			s.send(c, protocol.NewAck(seq, f.Type()))
		}
	}
	if s.cfg.ConfirmDelay > 0 {
		time.AfterFunc(s.cfg.ConfirmDelay, confirm)
	} else {
		confirm()
	}
}

// apply changes the stove state and returns the telemetry frame that shows it.
func (s *Stove) apply(cmd protocol.Command) *protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Kind {
	case protocol.CmdSetTemperature:
		s.rooms[cmd.Target-1].Set = cmd.Value
		return s.rooms[cmd.Target-1].Frame(protocol.SeqUnsolicited)
	case protocol.CmdSetFanSpeed:
		fan := &s.fans[cmd.Target-1]
		fan.SetSpeed = int(cmd.Value)
		if s.state.On {
			fan.Speed = fan.SetSpeed
		}
		return fan.Frame(protocol.SeqUnsolicited)
	case protocol.CmdSetPowerLevel:
		s.state.SetPowerLevel = int(cmd.Value)
	case protocol.CmdSetPower:
		s.state.On = cmd.Enabled
		s.phase = 0
		if cmd.Enabled {
			s.state.Status = protocol.StatusStarting
		} else {
			s.state.Status = protocol.StatusExtinguishing
		}
	case protocol.CmdSetEcoMode:
		s.state.Eco = cmd.Enabled
	case protocol.CmdSetChronoMode:
		s.state.Chrono = cmd.Enabled
	}
	return s.state.Frame(protocol.SeqUnsolicited)
}

// telemetry builds the full set of telemetry frames for the fitted hardware.
func (s *Stove) telemetry(seq uint16) []*protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := []*protocol.Frame{
		s.state.Frame(seq),
		s.smoke.Frame(seq),
		protocol.FanData{Fan: protocol.FanSmoke, Speed: s.smokeRPM}.Frame(seq),
	}
	for i := 1; i <= 3; i++ {
		if s.cfg.Info.HasRoom(i) {
			frames = append(frames, s.rooms[i-1].Frame(seq))
		}
	}
	for i := 0; i < s.cfg.Info.FanCount; i++ {
		frames = append(frames, s.fans[i].Frame(seq))
	}
	if s.cfg.Info.WaterSensor {
		frames = append(frames, s.water.Frame(seq))
	}
	if s.cfg.Info.Pump {
		frames = append(frames, protocol.NewPumpData(seq, s.pump))
	}
	return frames
}

// Push sends unsolicited telemetry to every connection.
func (s *Stove) Push() {
	for _, f := range s.telemetry(protocol.SeqUnsolicited) {
		s.broadcast(f)
	}
}

// PushFrame sends an arbitrary frame to every connection.
func (s *Stove) PushFrame(f *protocol.Frame) {
	s.broadcast(f)
}

func (s *Stove) broadcast(f *protocol.Frame) {
	s.connMu.Lock()
	conns := make([]*stoveConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.Unlock()
	for _, c := range conns {
		s.send(c, f)
	}
}

// corrupted is a well-framed TELEMETRY frame with a bad checksum.
var corrupted = []byte{protocol.StartByte, 0x02, 0x00, 0x00, 0x82, 0x11, 0xDE, 0xAD, protocol.EndByte}

func (s *Stove) send(c *stoveConn, frames ...*protocol.Frame) {
	var out []byte
	for _, f := range frames {
		data, err := f.Encode()
		if err != nil {
			s.log.Error("encode failed", zap.Error(err))
			continue
		}
		if s.cfg.Noise {
			out = append(out, 0x00, 0x42, protocol.EndByte)
			out = append(out, corrupted...)
		}
		out = append(out, data...)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	chunk := s.cfg.ChunkSize
	if chunk <= 0 {
		chunk = len(out)
	}
	for len(out) > 0 {
		n := min(chunk, len(out))
		if _, err := c.rw.Write(out[:n]); err != nil {
			return
		}
		out = out[n:]
	}
}

// SetRoomTemperature changes a measured room temperature.
func (s *Stove) SetRoomTemperature(room int, celsius float64) {
	s.mu.Lock()
	s.rooms[room-1].Value = celsius
	s.mu.Unlock()
}

// Commands returns every command received, in arrival order.
func (s *Stove) Commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Command(nil), s.commands...)
}

// MaxInFlight returns the largest number of commands that were awaiting
// confirmation at the same time.
func (s *Stove) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// State returns the current STATE_DATA values.
func (s *Stove) State() protocol.StateData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run advances the simulated combustion at each tick and pushes telemetry
// until ctx is canceled.
func (s *Stove) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.step()
			s.Push()
		}
	}
}

func (s *Stove) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := &s.rooms[0]
	s.phase++
	switch s.state.Status {
	case protocol.StatusStarting:
		if s.phase >= IgnitionTicks {
			s.state.Status, s.phase = protocol.StatusIgnition, 0
		}
	case protocol.StatusIgnition:
		s.smoke.Value += SmokeRampPerTick
		if s.phase >= IgnitionTicks {
			s.state.Status, s.phase = protocol.StatusPower, 0
		}
	case protocol.StatusPower, protocol.StatusModulation:
		s.state.PowerLevel = s.state.SetPowerLevel
		if s.state.Eco && room.Value >= room.Set {
			s.state.Status = protocol.StatusStandby
			break
		}
		if room.Value >= room.Set {
			s.state.Status = protocol.StatusModulation
			s.state.PowerLevel = protocol.MinPowerLevel
		} else {
			s.state.Status = protocol.StatusPower
		}
		room.Value = math.Round((room.Value+RoomRampPerTick*float64(s.state.PowerLevel)/3)*10) / 10
		s.smoke.Value = math.Min(s.smoke.Value+SmokeRampPerTick, 60+25*float64(s.state.PowerLevel))
	case protocol.StatusStandby:
		if room.Value < room.Set-1 {
			s.state.Status, s.phase = protocol.StatusStarting, 0
		}
		fallthrough
	default:
		s.state.PowerLevel = 0
		if room.Value > AmbientC {
			room.Value = math.Round((room.Value-RoomDriftPerTick)*100) / 100
		}
		if s.smoke.Value > AmbientC {
			s.smoke.Value = math.Max(AmbientC, s.smoke.Value-SmokeRampPerTick)
		}
		if s.state.Status == protocol.StatusExtinguishing && s.smoke.Value <= AmbientC+5 {
			s.state.Status = protocol.StatusOff
		}
	}

	burning := s.state.PowerLevel > 0
	s.smokeRPM = 0
	if burning {
		s.smokeRPM = 1200 + 150*s.state.PowerLevel
	}
	for i := range s.fans {
		if burning {
			s.fans[i].Speed = s.fans[i].SetSpeed
			s.fans[i].AirExchange = 20 * s.state.PowerLevel
		} else {
			s.fans[i].Speed, s.fans[i].AirExchange = 0, 0
		}
	}
	s.pump = s.cfg.Info.Pump && burning
	if s.cfg.Info.WaterSensor && burning {
		s.water.Value = math.Min(s.water.Value+0.5, s.water.Set)
	}
}
