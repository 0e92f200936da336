package penrack

import (
	"testing"
	"time"

	"plotlink-go/bus"
	"plotlink-go/drivers/stepper"
	"plotlink-go/errcode"
	"plotlink-go/link"
	"plotlink-go/wire"
)

type fakePin struct {
	level bool
	rises int
}

func (p *fakePin) Set(high bool) {
	if high && !p.level {
		p.rises++
	}
	p.level = high
}

type harness struct {
	c    *Controller
	step *fakePin
	dir  *fakePin
	sub  *bus.Subscription
}

func newHarness(t *testing.T, sleep func(time.Duration)) *harness {
	t.Helper()
	if sleep == nil {
		sleep = func(time.Duration) {}
	}
	step, dir, en := &fakePin{}, &fakePin{}, &fakePin{level: true}
	motor := stepper.New(step, dir, en, stepper.Config{Sleep: sleep})

	b := bus.NewBus(16)
	conn := b.NewConnection("penrack-test")
	sub := conn.Subscribe(bus.Topic{"penrack", "state"})

	c, err := New(conn, motor, Config{})
	if err != nil {
		t.Fatal(err)
	}
	return &harness{c: c, step: step, dir: dir, sub: sub}
}

func (h *harness) nextReport(t *testing.T) Report {
	t.Helper()
	select {
	case msg := <-h.sub.Channel():
		return msg.Payload.(Report)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for penrack report")
		return Report{}
	}
}

func TestMoveToMagentaThenRepeat(t *testing.T) {
	h := newHarness(t, nil)

	if code := h.c.MoveTo("magenta"); code != errcode.OK {
		t.Fatalf("code = %v", code)
	}
	if h.step.rises != 200 {
		t.Errorf("pulses = %d, want 200", h.step.rises)
	}
	if !h.dir.level {
		t.Error("direction should be forward")
	}
	if h.c.Position() != 200 {
		t.Errorf("position = %d, want 200", h.c.Position())
	}
	r := h.nextReport(t)
	if r.Event != "moved" || r.Steps != 200 || r.Pos != 200 {
		t.Errorf("report = %+v", r)
	}

	// Idempotent: second call issues no pulses.
	if code := h.c.MoveTo("magenta"); code != errcode.OK {
		t.Fatalf("code = %v", code)
	}
	if h.step.rises != 200 {
		t.Errorf("pulses after repeat = %d, want 200", h.step.rises)
	}
	r = h.nextReport(t)
	if r.Event != "at_target" {
		t.Errorf("report = %+v", r)
	}
}

func TestMoveSequenceForwardAndBack(t *testing.T) {
	h := newHarness(t, nil)

	h.c.MoveTo("magenta") // 0 -> 200
	h.c.MoveTo("yellow")  // 200 -> 400
	if h.step.rises != 400 {
		t.Errorf("total pulses = %d, want 400", h.step.rises)
	}
	if !h.dir.level {
		t.Error("direction should be forward")
	}
	if h.c.Position() != 400 {
		t.Errorf("position = %d, want 400", h.c.Position())
	}

	h.c.MoveTo("cyan") // 400 -> 0, reverse
	if h.step.rises != 800 {
		t.Errorf("total pulses = %d, want 800", h.step.rises)
	}
	if h.dir.level {
		t.Error("direction should be reverse")
	}
	if h.c.Position() != 0 {
		t.Errorf("position = %d, want 0", h.c.Position())
	}
}

func TestUnknownTarget(t *testing.T) {
	h := newHarness(t, nil)

	if code := h.c.MoveTo("purple"); code != errcode.UnknownTarget {
		t.Fatalf("code = %v", code)
	}
	if h.step.rises != 0 {
		t.Errorf("pulses = %d, want 0", h.step.rises)
	}
	if h.c.Position() != 0 {
		t.Errorf("position = %d, want 0", h.c.Position())
	}
	r := h.nextReport(t)
	if r.Event != "unknown_target" || r.Err != errcode.UnknownTarget {
		t.Errorf("report = %+v", r)
	}
}

func TestLinkCommandDrivesMove(t *testing.T) {
	h := newHarness(t, nil)
	lb := link.NewLoopback()
	h.c.Bind(lb)

	if err := lb.Send(wire.EncodeColor("yellow")); err != nil {
		t.Fatal(err)
	}
	r := h.nextReport(t)
	if r.Event != "moved" || r.Target != "yellow" || r.Pos != 400 {
		t.Errorf("report = %+v", r)
	}
}

func TestMalformedFrameIgnored(t *testing.T) {
	h := newHarness(t, nil)
	lb := link.NewLoopback()
	h.c.Bind(lb)

	if err := lb.Send([]byte(`{"color": }`)); err != nil {
		t.Fatal(err)
	}
	if h.c.Position() != 0 || h.step.rises != 0 {
		t.Error("malformed frame must not move the carousel")
	}
}

func TestPendingLatestWins(t *testing.T) {
	gate := make(chan struct{})
	var gated bool
	sleep := func(time.Duration) {
		if !gated {
			gated = true
			<-gate // hold the first move in flight
		}
	}
	h := newHarness(t, sleep)

	h.c.Request("magenta")
	// Wait for the move to be in flight.
	deadline := time.After(time.Second)
	for h.c.State() != StateMoving {
		select {
		case <-deadline:
			t.Fatal("move never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Two arrivals mid-move: only the latest survives.
	h.c.Request("yellow")
	h.c.Request("cyan")
	close(gate)

	first := h.nextReport(t)
	if first.Target != "magenta" || first.Event != "moved" {
		t.Errorf("first report = %+v", first)
	}
	second := h.nextReport(t)
	if second.Target != "cyan" {
		t.Errorf("second report = %+v, want deferred cyan", second)
	}

	deadline = time.After(time.Second)
	for h.c.State() != StateIdle {
		select {
		case <-deadline:
			t.Fatal("controller never went idle")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if h.c.Position() != 0 {
		t.Errorf("position = %d, want 0 (cyan)", h.c.Position())
	}
}

func TestTableValidation(t *testing.T) {
	if _, err := New(nil, nil, Config{Table: []Position{}}); errcode.Of(err) != errcode.Validation {
		t.Errorf("empty table err = %v", err)
	}
	dup := []Position{{Name: "cyan", Steps: 0}, {Name: "cyan", Steps: 10}}
	if _, err := New(nil, nil, Config{Table: dup}); errcode.Of(err) != errcode.Validation {
		t.Errorf("duplicate name err = %v", err)
	}
}
