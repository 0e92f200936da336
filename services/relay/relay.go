// Package relay is the bridge-side mode/command pipeline. It merges two
// input channels into one: lines injected on the local console channel
// (newline-framed, marked with the J: prefix) and payloads polled from the
// unit over the link. Recognized payloads update the applied machine mode,
// forward G-code to the host executor, and feed the console report sinks
// through the bus.
//
// Every accepted payload is announced once to the console immediately and
// then re-announced on a bounded schedule: the throttle window re-emits the
// payload every ReportInterval until ReportDuration has elapsed since the
// window opened. That makes a transient announcement visible to a
// slow-polling observer without flooding it indefinitely.
//
// The applied mode is written only by the relay's own loop and exposed to
// other tasks through an atomic accessor; no lock is shared with the
// motion-critical side.
package relay

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"plotlink-go/bus"
	"plotlink-go/errcode"
	"plotlink-go/link"
	"plotlink-go/wire"
	"plotlink-go/x/boundbuf"
	"plotlink-go/x/timex"
)

var (
	topicConsole = bus.Topic{"report", "console"}
	topicError   = bus.Topic{"report", "error"}
	topicMode    = bus.Topic{"machine", "mode"}
)

// Executor is the host command subsystem the relay forwards G-code into.
type Executor interface {
	Execute(line string) errcode.Code
}

type Config struct {
	// PollInterval is the relay tick and link poll period. Defaults to
	// 100ms; values under 10ms are raised to 10ms to bound the loop's CPU
	// share.
	PollInterval time.Duration
	// ReportInterval spaces repeated emissions inside a throttle window.
	// Defaults to 500ms.
	ReportInterval time.Duration
	// ReportDuration bounds a throttle window's lifetime. Defaults to 5s.
	ReportDuration time.Duration
}

const minPollInterval = 10 * time.Millisecond

type Service struct {
	conn *bus.Connection
	link link.Master
	exec Executor
	cfg  Config

	mode atomic.Uint32 // wire.Mode; written only by the relay loop

	lines chan []byte

	// Throttle window. Owned by the relay loop.
	winActive   bool
	winStart    int64
	lastEmit    int64
	lastPayload []byte

	now func() int64 // milliseconds; swapped in tests

	pollBuf  [wire.MaxTransfer]byte
	gcodeBuf *boundbuf.Buf
}

// New builds the relay. exec may be nil when no host executor is attached;
// G-code payloads are then dropped with an error report.
func New(conn *bus.Connection, lk link.Master, exec Executor, cfg Config) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.PollInterval < minPollInterval {
		cfg.PollInterval = minPollInterval
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 500 * time.Millisecond
	}
	if cfg.ReportDuration <= 0 {
		cfg.ReportDuration = 5 * time.Second
	}
	return &Service{
		conn:     conn,
		link:     lk,
		exec:     exec,
		cfg:      cfg,
		lines:    make(chan []byte, 8),
		now:      timex.NowMs,
		gcodeBuf: boundbuf.New(wire.MaxGcode),
	}
}

// Mode returns the applied machine mode. Safe from any task.
func (s *Service) Mode() wire.Mode { return wire.Mode(s.mode.Load()) }

// InjectLine hands the relay one line from the local console channel. It
// never blocks; a full queue drops the line and reports false.
func (s *Service) InjectLine(line []byte) bool {
	cp := append([]byte(nil), line...)
	select {
	case s.lines <- cp:
		return true
	default:
		return false
	}
}

// Start runs the relay loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	go s.serviceLoop(ctx)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context) {
	tick := time.NewTicker(s.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: relay stopping")
			return
		case <-tick.C:
			s.tick()
		}
	}
}

// tick runs one relay iteration: throttle upkeep, local-channel ingest,
// then a link poll. Messages are processed one at a time, in arrival order.
func (s *Service) tick() {
	now := s.now()
	s.throttleTick(now)
	s.drainLocal(now)
	s.pollOnce(now)
}

// throttleTick closes an expired window or re-emits its payload. The
// window deactivates once ReportDuration has elapsed since it opened, so a
// single event yields exactly duration/interval emissions counting the
// immediate first.
func (s *Service) throttleTick(now int64) {
	if !s.winActive {
		return
	}
	if now-s.winStart >= s.cfg.ReportDuration.Milliseconds() {
		s.winActive = false
		s.lastPayload = nil
		return
	}
	if now-s.lastEmit >= s.cfg.ReportInterval.Milliseconds() {
		s.emitJSON(s.lastPayload)
		s.lastEmit = now
	}
}

func (s *Service) drainLocal(now int64) {
	for {
		select {
		case line := <-s.lines:
			s.ingestLocal(line, now)
		default:
			return
		}
	}
}

// ingestLocal picks encoded messages out of the local line channel. Only
// lines marked with the J: prefix belong to this subsystem.
func (s *Service) ingestLocal(line []byte, now int64) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) <= 2 || line[0] != 'J' || line[1] != ':' {
		return
	}
	s.ingest(line[2:], now)
}

// pollOnce reads the unit's exposed payload. Absence of data (padding
// only, or no leading '{') is not an error.
func (s *Service) pollOnce(now int64) {
	n, err := s.link.Poll(s.pollBuf[:])
	if err != nil {
		s.reportError("poll", err)
		return
	}
	p := link.TrimPadding(s.pollBuf[:n])
	if len(p) == 0 || p[0] != '{' {
		return
	}
	s.ingest(p, now)
}

// ingest is the shared path for both channels: parse, announce the payload
// once, open a throttle window if none is active, then apply. Parsing comes
// first so a malformed payload is reported without touching the window or
// the applied mode.
func (s *Service) ingest(payload []byte, now int64) {
	msg, err := wire.Decode(payload)
	if err != nil {
		s.reportError("parse", err)
		return
	}

	cp := append([]byte(nil), payload...)
	emitted := false
	if !s.winActive {
		s.emitJSON(cp)
		emitted = true
		s.winActive = true
		s.winStart = now
		s.lastEmit = now
		s.lastPayload = cp
	}
	s.apply(msg, cp, now, emitted)
}

// apply interprets one decoded payload. Unrecognized fields are
// forward-compatible no-ops.
func (s *Service) apply(msg wire.Message, payload []byte, now int64, emitted bool) {
	if msg.Mode != "" {
		if m, ok := wire.ParseMode(msg.Mode); ok && m != s.Mode() {
			s.mode.Store(uint32(m))
			// The change supersedes any in-flight burst: end it and start
			// a fresh window announcing this payload.
			if !emitted {
				s.emitJSON(payload)
			}
			s.winActive = true
			s.winStart = now
			s.lastEmit = now
			s.lastPayload = payload
			s.announceMode(m)
		}
		// Same mode or unrecognized name: applied mode unchanged.
	}

	if msg.Gcode != "" {
		s.forwardGcode(msg.Gcode)
	}
}

// forwardGcode truncates and hands one command line to the host executor.
func (s *Service) forwardGcode(g string) {
	if s.gcodeBuf.SetString(g) {
		println("Info: relay: gcode truncated to", wire.MaxGcode, "bytes")
	}
	if s.exec == nil {
		s.reportError("gcode", &errcode.E{C: errcode.CommandFailed, Op: "relay", Msg: "no executor attached"})
		return
	}
	if code := s.exec.Execute(s.gcodeBuf.String()); code != errcode.OK {
		s.reportError("gcode", &errcode.E{C: errcode.CommandFailed, Op: "relay", Msg: string(code)})
	}
}

// SendCommand writes one payload to the unit. It is the only path that
// originates unit-bound traffic. The payload must be non-empty and fit a
// single transfer.
func (s *Service) SendCommand(p []byte) error {
	if len(p) == 0 {
		err := &errcode.E{C: errcode.Validation, Op: "relay.SendCommand", Msg: "empty payload"}
		s.reportError("send", err)
		return err
	}
	if len(p) > wire.MaxTransfer {
		err := &errcode.E{C: errcode.Oversize, Op: "relay.SendCommand"}
		s.reportError("send", err)
		return err
	}
	if err := s.link.Send(p); err != nil {
		s.reportError("send", err)
		return err
	}
	println("Info: relay: sent", len(p), "bytes")
	return nil
}

func (s *Service) emitJSON(payload []byte) {
	s.conn.Publish(s.conn.NewMessage(topicConsole, wire.ReportJSON(payload), false))
}

// announceMode notifies every report sink of a mode change and retains the
// new mode for late subscribers.
func (s *Service) announceMode(m wire.Mode) {
	s.conn.Publish(s.conn.NewMessage(topicConsole, wire.ReportMode(m), false))
	s.conn.Publish(s.conn.NewMessage(topicMode, m.String(), true))
	println("Info: relay: mode applied:", m.String())
}

func (s *Service) reportError(op string, err error) {
	println("Error: relay:", op+":", err.Error())
	s.conn.Publish(s.conn.NewMessage(topicError, op+": "+err.Error(), false))
}
