// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package hottoh is a session client for HottoH pellet and wood stoves.
//
// A Session owns one connection to the stove controller. A read loop decodes
// every frame the stove sends into a State Cache and a Capability
// Descriptor; a dispatcher serializes commands so that at most one is on
// the wire at a time. Reads from the cache never touch the network.
//
// Reconnection is left to callers: a failed read moves the session to
// StateFailed and it stays there until Connect is called again.
package hottoh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// Defaults applied by New when the Config leaves a field zero.
const (
	DefaultCommandTimeout = 5 * time.Second
	DefaultPollInterval   = 10 * time.Second
	DefaultWriteTimeout   = 2 * time.Second
	DefaultQueueSize      = 32
)

// Config configures a Session.
type Config struct {
	Dialer Dialer
	// CommandTimeout bounds the wait for a command to be confirmed.
	CommandTimeout time.Duration
	// PollInterval is how often telemetry is requested. Negative disables
	// polling; the stove may still push telemetry on its own.
	PollInterval time.Duration
	WriteTimeout time.Duration
	QueueSize    int
	Logger       *zap.Logger
}

// Session is a client for one stove. All methods are safe for concurrent use.
type Session struct {
	cfg   Config
	log   *zap.Logger
	cache *Cache
	stats *protocol.Statistics
	seq   atomic.Uint32

	mu      sync.RWMutex
	state   ConnState
	link    *link
	lastErr error

	cmdStats commandCounters
}

// link is everything that lives exactly as long as one connection.
type link struct {
	conn    Conn
	desc    *descriptor
	jobs    chan *job
	done    chan struct{} // closed to stop the goroutines below
	stopped chan struct{} // closed once the dispatcher drained its queue
	once    sync.Once
	wg      sync.WaitGroup
	writeMu sync.Mutex

	pendMu  sync.Mutex
	pending map[uint16]chan *protocol.Frame
}

func (l *link) stop() {
	l.once.Do(func() {
		close(l.done)
		_ = l.conn.Close()
	})
}

func (l *link) closing() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// New creates a disconnected Session.
func New(cfg Config) *Session {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		cfg:   cfg,
		log:   log.With(zap.String("stove", dialerName(cfg.Dialer))),
		cache: NewCache(),
		stats: protocol.NewStatistics(),
	}
}

func dialerName(d Dialer) string {
	if d == nil {
		return "<none>"
	}
	return d.String()
}

// Connect opens the connection and starts the read loop, dispatcher and
// poller. It does not wait for the handshake; see ConnectWithTimeout.
// Calling Connect on a connected session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnected:
		s.mu.Unlock()
		return nil
	case StateConnecting:
		s.mu.Unlock()
		return &ConnectionError{Op: "dial", Addr: dialerName(s.cfg.Dialer), Err: errors.New("connect already in progress")}
	}
	if s.cfg.Dialer == nil {
		s.mu.Unlock()
		return &ConnectionError{Op: "dial", Err: errors.New("no dialer configured")}
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.log.Info("connecting")
	conn, err := s.cfg.Dialer.Dial(ctx)
	if err != nil {
		cerr := &ConnectionError{
			Op:      "dial",
			Addr:    s.cfg.Dialer.String(),
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
		s.mu.Lock()
		s.state = StateFailed
		s.lastErr = cerr
		s.mu.Unlock()
		s.log.Warn("connect failed", zap.Error(err))
		return cerr
	}

	l := &link{
		conn:    conn,
		desc:    newDescriptor(),
		jobs:    make(chan *job, s.cfg.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		pending: make(map[uint16]chan *protocol.Frame),
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Disconnect raced with the dial
		s.mu.Unlock()
		_ = conn.Close()
		return &ConnectionError{Op: "dial", Addr: s.cfg.Dialer.String(), Err: errors.New("disconnected while connecting")}
	}
	s.link = l
	s.state = StateConnected
	s.lastErr = nil
	s.mu.Unlock()

	l.wg.Add(3)
	go s.readLoop(l)
	go s.dispatch(l)
	go s.poll(l)

	s.log.Info("connected")
	return nil
}

// Disconnect closes the connection and waits for the session goroutines to
// exit. Once it returns the cache is no longer modified. It is idempotent.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	l := s.link
	s.link = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if l == nil {
		return nil
	}
	l.stop()
	l.wg.Wait()
	s.log.Info("disconnected")
	return nil
}

// IsConnected reports whether the session currently holds a live connection.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// State returns the current lifecycle state.
func (s *Session) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the error that moved the session to StateFailed.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) currentLink() *link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.link
}

// fail marks l as dead. Only the link that is still current changes the
// session state; a stale link from before a reconnect is just stopped.
func (s *Session) fail(l *link, op string, err error) {
	s.mu.Lock()
	if s.link == l {
		s.state = StateFailed
		s.lastErr = &ConnectionError{Op: op, Addr: dialerName(s.cfg.Dialer), Err: err}
	}
	s.mu.Unlock()
	l.stop()
}

// Cache returns the state cache.
func (s *Session) Cache() *Cache {
	return s.cache
}

// Get returns the cached reading for a without any network I/O.
func (s *Session) Get(a Attribute) (Reading, bool) {
	return s.cache.Get(a)
}

// Snapshot returns a copy of every cached reading.
func (s *Session) Snapshot() Snapshot {
	return s.cache.Snapshot()
}

// Capabilities returns the descriptor learned from the current connection's
// handshake. The bool is false until the handshake has completed.
func (s *Session) Capabilities() (Capabilities, bool) {
	l := s.currentLink()
	if l == nil {
		return Capabilities{}, false
	}
	return l.desc.get()
}

// Ready returns a channel closed once the current connection's handshake
// has completed. Without a connection it returns nil, which blocks forever.
func (s *Session) Ready() <-chan struct{} {
	l := s.currentLink()
	if l == nil {
		return nil
	}
	return l.desc.ready
}

// Stats returns the frame statistics for the life of the session.
func (s *Session) Stats() *protocol.Statistics {
	return s.stats
}

func (s *Session) nextSeq() uint16 {
	for {
		if seq := uint16(s.seq.Add(1)); seq != protocol.SeqUnsolicited {
			return seq
		}
	}
}

// write sends one encoded frame. Writes are serialized per connection.
func (s *Session) write(l *link, data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if wd, ok := l.conn.(writeDeadliner); ok {
		_ = wd.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if _, err := l.conn.Write(data); err != nil {
		s.fail(l, "write", err)
		return err
	}
	return nil
}

func (s *Session) readLoop(l *link) {
	defer l.wg.Done()

	decoder := protocol.NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := l.conn.Read(buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				s.stats.Update(nil, decodeErr, nil)
				s.log.Debug("dropped malformed frame", zap.Error(decodeErr))
				continue
			}
			if frame == nil {
				continue
			}
			if l.closing() {
				return
			}
			s.stats.Update(frame, nil, protocol.ValidateFrame(frame))
			s.handleFrame(l, frame)
		}
		if err != nil {
			if !l.closing() {
				s.log.Warn("connection lost", zap.Error(err))
				s.fail(l, "read", err)
			}
			return
		}
	}
}

func (s *Session) handleFrame(l *link, f *protocol.Frame) {
	if ce := s.log.Check(zap.DebugLevel, "frame"); ce != nil {
		ce.Write(zap.String("type", protocol.FormatMessageType(f.Type())), zap.Uint16("seq", f.Seq()))
	}

	switch f.Type() {
	case protocol.MsgAck, protocol.MsgErrorRejected, protocol.MsgErrorInvalidCmd, protocol.MsgPingResponse:
		s.resolve(l, f)
		if f.Type() == protocol.MsgPingResponse {
			if ms, ok := protocol.GetMapUint(f.PayloadMap(), 0); ok {
				s.cache.apply(map[Attribute]any{AttrUptime: int(ms / 1000)}, f.Timestamp())
			}
		}
		return
	case protocol.MsgDeviceInfo:
		info, err := protocol.ParseDeviceInfo(f)
		if err != nil {
			s.log.Warn("bad device info", zap.Error(err))
			return
		}
		if _, known := l.desc.get(); known {
			return
		}
		caps := capabilitiesFrom(info)
		s.cache.apply(map[Attribute]any{
			AttrName:         caps.Name,
			AttrManufacturer: caps.Manufacturer,
			AttrModel:        caps.Model,
			AttrFirmware:     caps.Firmware,
		}, f.Timestamp())
		l.desc.populate(caps)
		s.log.Info("handshake complete",
			zap.String("name", caps.Name),
			zap.String("firmware", caps.Firmware),
			zap.Int("fans", caps.FanCount))
		s.enqueue(l, refreshJob())
		return
	}

	update, err := telemetryUpdate(f)
	if err != nil {
		s.log.Debug("ignored frame", zap.Error(err))
		return
	}
	s.cache.apply(update, f.Timestamp())
}

// telemetryUpdate maps one telemetry frame to the group of attributes it
// carries.
func telemetryUpdate(f *protocol.Frame) (map[Attribute]any, error) {
	switch f.Type() {
	case protocol.MsgStateData:
		st, err := protocol.ParseStateData(f)
		if err != nil {
			return nil, err
		}
		mode := ModeOff
		if st.On {
			mode = ModeOn
		}
		update := map[Attribute]any{
			AttrIsOn:       st.On,
			AttrMode:       mode,
			AttrStatus:     st.Status.String(),
			AttrAction:     string(st.Status.Action()),
			AttrEcoMode:    st.Eco,
			AttrChronoMode: st.Chrono,
			AttrPowerLevel: st.PowerLevel,
		}
		if st.SetPowerLevel != 0 {
			update[AttrSetPowerLevel] = st.SetPowerLevel
			update[AttrSetMinPower] = st.MinPowerLevel
			update[AttrSetMaxPower] = st.MaxPowerLevel
		}
		return update, nil

	case protocol.MsgTemperatureData:
		t, err := protocol.ParseTemperatureData(f)
		if err != nil {
			return nil, err
		}
		var value, set, lo, hi Attribute
		switch t.Sensor {
		case protocol.SensorWater:
			value, set, lo, hi = AttrWaterTemp, AttrSetWaterTemp, AttrSetMinWater, AttrSetMaxWater
		case protocol.SensorSmoke:
			value = AttrSmokeTemp
		default:
			value = RoomTemperature(t.Sensor)
			set, lo, hi = SetRoomTemperature(t.Sensor), SetMinRoomTemperature(t.Sensor), SetMaxRoomTemperature(t.Sensor)
		}
		update := map[Attribute]any{value: t.Value}
		if t.HasSet && set != "" {
			update[set] = t.Set
			update[lo] = t.SetMin
			update[hi] = t.SetMax
		}
		return update, nil

	case protocol.MsgFanData:
		fd, err := protocol.ParseFanData(f)
		if err != nil {
			return nil, err
		}
		if fd.Fan == protocol.FanSmoke {
			return map[Attribute]any{AttrSmokeFanSpeed: fd.Speed}, nil
		}
		return map[Attribute]any{
			FanSpeed(fd.Fan):    fd.Speed,
			SetFanSpeed(fd.Fan): fd.SetSpeed,
			AirExchange(fd.Fan): fd.AirExchange,
		}, nil

	case protocol.MsgPumpData:
		running, err := protocol.ParsePumpData(f)
		if err != nil {
			return nil, err
		}
		return map[Attribute]any{AttrWaterPump: running}, nil
	}
	return nil, fmt.Errorf("unhandled message type %s", protocol.FormatMessageType(f.Type()))
}
