// Package stepper drives a step/dir/enable stepper driver at a constant
// rate. One Move call is one committed motion: direction is latched before
// the first pulse, the enable line is asserted only while pulses are being
// issued, and the caller owns position accounting.
//
// The inter-step delay is a real-time bound on pulse spacing, not a
// suggestion; Move blocks for the whole motion. There is no cancellation
// mid-move.
package stepper

import "time"

// Pin is a single output line.
type Pin interface {
	Set(high bool)
}

type Config struct {
	// StepDelay is the half-period between pin toggles. Defaults to 2ms.
	StepDelay time.Duration

	// ActiveHighEnable inverts the enable polarity. The zero value matches
	// the common driver boards that enable on a low line, so the motor is
	// de-energized at rest.
	ActiveHighEnable bool

	// Sleep replaces time.Sleep; tests inject it to run moves instantly or
	// to hold a move in flight.
	Sleep func(time.Duration)
}

// Device is one stepper axis.
type Device struct {
	step, dir, en Pin
	cfg           Config
}

// New wires a device to its three output pins. en may be nil for drivers
// that are permanently enabled.
func New(step, dir, en Pin, cfg Config) *Device {
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = 2 * time.Millisecond
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Device{step: step, dir: dir, en: en, cfg: cfg}
}

// Move issues |steps| pulses with the direction taken from the sign of
// steps, and returns the number of pulses issued. steps == 0 is a no-op
// that never touches the pins.
func (d *Device) Move(steps int) int {
	if steps == 0 {
		return 0
	}
	n := steps
	forward := true
	if n < 0 {
		n = -n
		forward = false
	}

	d.dir.Set(forward)
	d.setEnabled(true)
	for i := 0; i < n; i++ {
		d.step.Set(true)
		d.cfg.Sleep(d.cfg.StepDelay)
		d.step.Set(false)
		d.cfg.Sleep(d.cfg.StepDelay)
	}
	d.setEnabled(false)
	return n
}

func (d *Device) setEnabled(on bool) {
	if d.en == nil {
		return
	}
	if d.cfg.ActiveHighEnable {
		d.en.Set(on)
	} else {
		d.en.Set(!on)
	}
}
