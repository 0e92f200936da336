package relay

import (
	"context"
	"testing"
	"time"

	"plotlink-go/bus"
	"plotlink-go/drivers/stepper"
	"plotlink-go/link"
	"plotlink-go/services/modesense"
	"plotlink-go/services/penrack"
	"plotlink-go/wire"
)

type level struct{ on bool }

func (p *level) Get() bool { return p.on }

type sinkPin struct{}

func (sinkPin) Set(bool) {}

// Full loop over an in-memory link: the sensor exposes its sensed mode,
// the relay polls and applies it, and a command sent the other way moves
// the carousel.
func TestEndToEndOverLoopback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(64)
	lb := link.NewLoopback()

	// Unit side: laser switch already on at boot.
	sensor := modesense.New(&level{}, &level{on: true}, &level{}, lb, modesense.Config{})
	if err := sensor.Start(ctx); err != nil {
		t.Fatal(err)
	}
	motor := stepper.New(sinkPin{}, sinkPin{}, sinkPin{}, stepper.Config{Sleep: func(time.Duration) {}})
	rack, err := penrack.New(b.NewConnection("penrack"), motor, penrack.Config{})
	if err != nil {
		t.Fatal(err)
	}
	rack.Bind(lb)

	// Bridge side, ticked by hand.
	var clock int64
	rly := New(b.NewConnection("relay"), lb, nil, Config{})
	rly.now = func() int64 { return clock }

	rly.tick()
	if rly.Mode() != wire.ModeLaser {
		t.Fatalf("applied mode = %v, want laser", rly.Mode())
	}

	if err := rly.SendCommand(wire.EncodeColor("magenta")); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(time.Second)
	for rack.Position() != 200 || rack.State() != penrack.StateIdle {
		select {
		case <-deadline:
			t.Fatalf("carousel at %d (%v), want 200 idle", rack.Position(), rack.State())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
