// Package modesense derives the machine operating mode from the unit's
// discrete inputs and keeps the link's poll response current. Ties resolve
// by fixed priority: spindle over laser over drawing; no active input means
// none. Sampling is pure; the encoded payload is refreshed only on change,
// and publication happens when the bridge polls.
package modesense

import (
	"context"
	"time"

	"plotlink-go/link"
	"plotlink-go/wire"
)

// InputPin is a single discrete input.
type InputPin interface {
	Get() bool
}

type Config struct {
	// SampleInterval is the control-loop tick. Defaults to 50ms.
	SampleInterval time.Duration
}

type Sensor struct {
	spindle, laser, drawing InputPin
	resp                    link.Responder
	cfg                     Config

	last wire.Mode
}

// New wires the sensor to its three inputs and the link responder. Any pin
// may be nil and then never reads active.
func New(spindle, laser, drawing InputPin, resp link.Responder, cfg Config) *Sensor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 50 * time.Millisecond
	}
	return &Sensor{
		spindle: spindle,
		laser:   laser,
		drawing: drawing,
		resp:    resp,
		cfg:     cfg,
	}
}

// Sample returns the highest-priority active input. Pure: no side effects.
func (s *Sensor) Sample() wire.Mode {
	switch {
	case active(s.spindle):
		return wire.ModeSpindle
	case active(s.laser):
		return wire.ModeLaser
	case active(s.drawing):
		return wire.ModeDrawing
	}
	return wire.ModeNone
}

func active(p InputPin) bool { return p != nil && p.Get() }

// Start publishes the initial mode and runs the sampling loop.
func (s *Sensor) Start(ctx context.Context) error {
	s.publish(s.Sample())
	go s.serviceLoop(ctx)
	return nil
}

func (s *Sensor) serviceLoop(ctx context.Context) {
	tick := time.NewTicker(s.cfg.SampleInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: modesense stopping")
			return
		case <-tick.C:
			s.Tick()
		}
	}
}

// Tick runs one sampling iteration.
func (s *Sensor) Tick() {
	if m := s.Sample(); m != s.last {
		s.publish(m)
	}
}

func (s *Sensor) publish(m wire.Mode) {
	s.last = m
	if err := s.resp.SetResponse(wire.EncodeMode(m)); err != nil {
		println("Error: modesense response update:", err.Error())
		return
	}
	println("Info: sensed mode:", m.String())
}

// Last returns the most recently published mode.
func (s *Sensor) Last() wire.Mode { return s.last }
