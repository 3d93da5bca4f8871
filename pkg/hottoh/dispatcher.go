// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

type jobKind int

const (
	jobCommand jobKind = iota
	jobPing
	jobRefresh
	jobInfo
)

// job is one unit of work for the dispatcher. Fire-and-forget jobs have a
// nil result channel.
type job struct {
	kind   jobKind
	cmd    protocol.Command
	ctx    context.Context
	result chan error
	rtt    time.Duration
}

func (j *job) name() string {
	switch j.kind {
	case jobPing:
		return "ping"
	case jobRefresh:
		return "refresh"
	case jobInfo:
		return "info"
	}
	return j.cmd.String()
}

func refreshJob() *job {
	return &job{kind: jobRefresh, ctx: context.Background()}
}

// CommandStats counts command outcomes over the life of the session.
type CommandStats struct {
	Sent         uint64
	Confirmed    uint64
	Timeouts     uint64
	Rejected     uint64
	NotConnected uint64
}

type commandCounters struct {
	sent, confirmed, timeouts, rejected, notConnected atomic.Uint64
}

func (c *commandCounters) record(err error) {
	if err == nil {
		c.confirmed.Add(1)
		return
	}
	if ce, ok := err.(*CommandError); ok {
		switch ce.Kind {
		case KindTimeout:
			c.timeouts.Add(1)
		case KindRejected:
			c.rejected.Add(1)
		case KindNotConnected:
			c.notConnected.Add(1)
		}
	}
}

// CommandStats returns a copy of the command counters.
func (s *Session) CommandStats() CommandStats {
	return CommandStats{
		Sent:         s.cmdStats.sent.Load(),
		Confirmed:    s.cmdStats.confirmed.Load(),
		Timeouts:     s.cmdStats.timeouts.Load(),
		Rejected:     s.cmdStats.rejected.Load(),
		NotConnected: s.cmdStats.notConnected.Load(),
	}
}

// Send queues cmd behind any commands already submitted and blocks until
// the stove confirms it or it fails. Commands are written one at a time in
// submission order and are never retried.
//
// A command is confirmed by an ACK frame carrying its sequence number, or
// by a telemetry update received after the write that changes the cache to
// the requested value. A command asking for the value the cache already
// holds is confirmed only by ACK. Failures are *CommandError values.
func (s *Session) Send(ctx context.Context, cmd protocol.Command) error {
	if err := cmd.Validate(); err != nil {
		return commandError(KindInvalid, cmd.String(), err)
	}

	l := s.currentLink()
	if l == nil || s.State() != StateConnected {
		s.cmdStats.notConnected.Add(1)
		return commandError(KindNotConnected, cmd.String(), nil)
	}

	caps, known := l.desc.get()
	if (cmd.Kind == protocol.CmdSetFanSpeed || cmd.Kind == protocol.CmdSetTemperature) && (!known || !caps.supports(cmd)) {
		return commandError(KindUnsupported, cmd.String(), nil)
	}

	err := s.submit(ctx, l, &job{kind: jobCommand, cmd: cmd})
	s.cmdStats.record(err)
	return err
}

// Ping measures the round trip to the stove through the command queue.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	l := s.currentLink()
	if l == nil {
		return 0, commandError(KindNotConnected, "ping", nil)
	}
	j := &job{kind: jobPing}
	if err := s.submit(ctx, l, j); err != nil {
		return 0, err
	}
	return j.rtt, nil
}

// Refresh asks the stove to send all telemetry. It returns once the request
// is queued; the cache updates as the answers arrive.
func (s *Session) Refresh() error {
	l := s.currentLink()
	if l == nil || !s.enqueue(l, refreshJob()) {
		return commandError(KindNotConnected, "refresh", nil)
	}
	return nil
}

// requestInfo asks the stove to (re)send DEVICE_INFO.
func (s *Session) requestInfo() bool {
	l := s.currentLink()
	return l != nil && s.enqueue(l, &job{kind: jobInfo, ctx: context.Background()})
}

// enqueue adds a fire-and-forget job without blocking.
func (s *Session) enqueue(l *link, j *job) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.jobs <- j:
		return true
	default:
		s.log.Debug("queue full, dropped job", zap.String("job", j.name()))
		return false
	}
}

func (s *Session) submit(ctx context.Context, l *link, j *job) error {
	j.ctx = ctx
	j.result = make(chan error, 1)

	select {
	case l.jobs <- j:
	case <-l.done:
		return commandError(KindNotConnected, j.name(), nil)
	case <-ctx.Done():
		return commandError(KindCanceled, j.name(), ctx.Err())
	}

	select {
	case err := <-j.result:
		return err
	case <-l.stopped:
		select {
		case err := <-j.result:
			return err
		default:
			return commandError(KindNotConnected, j.name(), nil)
		}
	case <-ctx.Done():
		// The dispatcher notices the canceled context and skips or abandons the job
		return commandError(KindCanceled, j.name(), ctx.Err())
	}
}

// dispatch is the single worker that owns the wire for commands.
func (s *Session) dispatch(l *link) {
	defer l.wg.Done()
	defer close(l.stopped)

	for {
		select {
		case <-l.done:
			for {
				select {
				case j := <-l.jobs:
					if j.result != nil {
						j.result <- commandError(KindNotConnected, j.name(), nil)
					}
				default:
					return
				}
			}
		case j := <-l.jobs:
			err := s.execute(l, j)
			if j.result != nil {
				j.result <- err
			}
		}
	}
}

func (s *Session) execute(l *link, j *job) error {
	if err := j.ctx.Err(); err != nil {
		return commandError(KindCanceled, j.name(), err)
	}

	seq := s.nextSeq()
	var frame *protocol.Frame
	switch j.kind {
	case jobRefresh:
		frame = protocol.NewTelemetryRequest(seq)
	case jobInfo:
		frame = protocol.NewInfoRequest(seq)
	case jobPing:
		frame = protocol.NewPingRequest(seq)
	default:
		f, err := j.cmd.Frame(seq)
		if err != nil {
			return commandError(KindInvalid, j.name(), err)
		}
		frame = f
	}
	data, err := frame.Encode()
	if err != nil {
		return commandError(KindInvalid, j.name(), err)
	}

	if j.result == nil {
		if err := s.write(l, data); err != nil {
			s.log.Debug("request not sent", zap.String("job", j.name()), zap.Error(err))
		}
		return nil
	}

	replies := make(chan *protocol.Frame, 1)
	l.pendMu.Lock()
	l.pending[seq] = replies
	l.pendMu.Unlock()
	defer func() {
		l.pendMu.Lock()
		delete(l.pending, seq)
		l.pendMu.Unlock()
	}()

	baseline := s.cache.Version()
	// Telemetry can only confirm a command it actually changes
	byTelemetry := j.kind == jobCommand && !confirmed(j.cmd, s.cache)
	start := time.Now()
	if j.kind == jobCommand {
		s.cmdStats.sent.Add(1)
	}
	if err := s.write(l, data); err != nil {
		return commandError(KindNotConnected, j.name(), err)
	}
	s.log.Debug("sent", zap.String("job", j.name()), zap.Uint16("seq", seq))

	timer := time.NewTimer(s.cfg.CommandTimeout)
	defer timer.Stop()

	for {
		version, changed := s.cache.Watch()
		if byTelemetry && version > baseline && confirmed(j.cmd, s.cache) {
			return nil
		}

		select {
		case f := <-replies:
			switch f.Type() {
			case protocol.MsgAck:
				return nil
			case protocol.MsgPingResponse:
				j.rtt = time.Since(start)
				return nil
			default:
				ce := commandError(KindRejected, j.name(), nil)
				ce.Reason = protocol.RejectReasonOf(f).String()
				s.log.Info("command rejected", zap.String("command", j.name()), zap.String("reason", ce.Reason))
				return ce
			}
		case <-changed:
		case <-timer.C:
			s.log.Info("command timed out", zap.String("command", j.name()), zap.Duration("timeout", s.cfg.CommandTimeout))
			return commandError(KindTimeout, j.name(), nil)
		case <-j.ctx.Done():
			return commandError(KindCanceled, j.name(), j.ctx.Err())
		case <-l.done:
			return commandError(KindNotConnected, j.name(), nil)
		}
	}
}

// resolve hands a reply frame to the job waiting on its sequence number.
func (s *Session) resolve(l *link, f *protocol.Frame) {
	l.pendMu.Lock()
	ch, ok := l.pending[f.Seq()]
	l.pendMu.Unlock()
	if !ok {
		s.log.Debug("reply without pending request", zap.Uint16("seq", f.Seq()))
		return
	}
	select {
	case ch <- f:
	default:
	}
}

// confirmed reports whether the cache shows the value cmd asked for.
func confirmed(cmd protocol.Command, c *Cache) bool {
	snap := c.Snapshot()
	switch cmd.Kind {
	case protocol.CmdSetTemperature:
		v, ok := snap.Float(SetRoomTemperature(cmd.Target))
		return ok && protocol.Tenths(v) == protocol.Tenths(cmd.Value)
	case protocol.CmdSetPowerLevel:
		v, ok := snap.Int(AttrSetPowerLevel)
		return ok && v == int(cmd.Value)
	case protocol.CmdSetFanSpeed:
		v, ok := snap.Int(SetFanSpeed(cmd.Target))
		return ok && v == int(cmd.Value)
	case protocol.CmdSetPower:
		v, ok := snap.Bool(AttrIsOn)
		return ok && v == cmd.Enabled
	case protocol.CmdSetEcoMode:
		v, ok := snap.Bool(AttrEcoMode)
		return ok && v == cmd.Enabled
	case protocol.CmdSetChronoMode:
		v, ok := snap.Bool(AttrChronoMode)
		return ok && v == cmd.Enabled
	}
	return false
}

// Typed command helpers

// SetTemperature sets the room 1 set point in degrees Celsius.
func (s *Session) SetTemperature(ctx context.Context, celsius float64) error {
	return s.Send(ctx, protocol.SetTemperature(protocol.SensorRoom1, celsius))
}

// SetRoomTemperature sets the set point of room sensor n.
func (s *Session) SetRoomTemperature(ctx context.Context, room int, celsius float64) error {
	return s.Send(ctx, protocol.SetTemperature(room, celsius))
}

// SetPowerLevel sets the combustion power level.
func (s *Session) SetPowerLevel(ctx context.Context, level int) error {
	return s.Send(ctx, protocol.SetPowerLevel(level))
}

// SetSpeedFan sets fan n to speed (0 is automatic).
func (s *Session) SetSpeedFan(ctx context.Context, fan, speed int) error {
	return s.Send(ctx, protocol.SetFanSpeed(fan, speed))
}

// SetOn turns the stove on.
func (s *Session) SetOn(ctx context.Context) error {
	return s.Send(ctx, protocol.SetPower(true))
}

// SetOff turns the stove off.
func (s *Session) SetOff(ctx context.Context) error {
	return s.Send(ctx, protocol.SetPower(false))
}

// SetEcoMode toggles eco mode.
func (s *Session) SetEcoMode(ctx context.Context, on bool) error {
	return s.Send(ctx, protocol.SetEcoMode(on))
}

// SetChronoMode toggles the chrono schedule.
func (s *Session) SetChronoMode(ctx context.Context, on bool) error {
	return s.Send(ctx, protocol.SetChronoMode(on))
}
