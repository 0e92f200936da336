// Package penrack positions the unit's pen carousel. Targets are named
// entries in a fixed table of absolute step counts; a move drives the
// stepper the full distance and only then commits the new position, so an
// interrupted move leaves no partial state behind.
//
// A command arriving while a move is in flight is parked in a single
// pending slot with latest-wins overwrite and runs when the motor stops.
// Mid-move arrivals are deferred, never dropped.
package penrack

import (
	"sync"

	"plotlink-go/bus"
	"plotlink-go/drivers/stepper"
	"plotlink-go/errcode"
	"plotlink-go/link"
	"plotlink-go/wire"
)

var topicState = bus.Topic{"penrack", "state"}

// Position maps a symbolic name to an absolute step count from the origin.
type Position struct {
	Name  string
	Steps int
}

// DefaultTable is the stock three-pen carousel.
func DefaultTable() []Position {
	return []Position{
		{Name: "cyan", Steps: 0},
		{Name: "magenta", Steps: 200},
		{Name: "yellow", Steps: 400},
	}
}

type State uint8

const (
	StateIdle State = iota
	StateMoving
)

func (s State) String() string {
	if s == StateMoving {
		return "moving"
	}
	return "idle"
}

// Report is published on penrack/state after every handled command.
type Report struct {
	Event  string // "moved", "at_target", "unknown_target"
	Target string
	Steps  int // pulses issued
	Pos    int // committed position after the event
	Err    errcode.Code
}

type Config struct {
	Table []Position // nil selects DefaultTable
}

// Controller owns the carousel's current position. The position moves only
// through full completion of a move.
type Controller struct {
	conn  *bus.Connection
	motor *stepper.Device
	table []Position

	mu         sync.Mutex
	state      State
	pos        int
	pending    string
	hasPending bool
}

// New validates the table and builds a controller at the origin.
func New(conn *bus.Connection, motor *stepper.Device, cfg Config) (*Controller, error) {
	table := cfg.Table
	if table == nil {
		table = DefaultTable()
	}
	if len(table) == 0 {
		return nil, &errcode.E{C: errcode.Validation, Op: "penrack.New", Msg: "empty position table"}
	}
	seen := make(map[string]bool, len(table))
	for _, p := range table {
		if p.Name == "" || seen[p.Name] {
			return nil, &errcode.E{C: errcode.Validation, Op: "penrack.New", Msg: "duplicate or empty position name: " + p.Name}
		}
		seen[p.Name] = true
	}
	return &Controller{conn: conn, motor: motor, table: table}, nil
}

// Bind subscribes the controller to command payloads arriving on the link.
func (c *Controller) Bind(resp link.Responder) {
	resp.OnWrite(c.handleFrame)
}

func (c *Controller) handleFrame(p []byte) {
	p = link.TrimPadding(p)
	msg, err := wire.Decode(p)
	if err != nil {
		println("Error: penrack:", err.Error())
		return
	}
	if msg.Color != "" {
		c.Request(msg.Color)
	}
	// Other keys are not ours; ignore.
}

// Request asks for a move to the named position. If the carousel is moving,
// the request is parked in the pending slot (overwriting any earlier one)
// and handled when the current move completes. Request returns immediately.
func (c *Controller) Request(name string) {
	c.mu.Lock()
	if c.state == StateMoving {
		c.pending = name
		c.hasPending = true
		c.mu.Unlock()
		return
	}
	c.state = StateMoving
	c.mu.Unlock()

	go c.runMoves(name)
}

func (c *Controller) runMoves(name string) {
	for {
		c.MoveTo(name)

		c.mu.Lock()
		if c.hasPending {
			name = c.pending
			c.hasPending = false
			c.mu.Unlock()
			continue
		}
		c.state = StateIdle
		c.mu.Unlock()
		return
	}
}

// MoveTo drives the carousel to the named position, blocking for the whole
// motion. Name matching is case-sensitive and exact. The result is reported
// on penrack/state and returned as a code.
func (c *Controller) MoveTo(name string) errcode.Code {
	target, ok := c.lookup(name)
	if !ok {
		println("Error: penrack: unknown target:", name)
		c.report(Report{Event: "unknown_target", Target: name, Pos: c.Position(), Err: errcode.UnknownTarget})
		return errcode.UnknownTarget
	}

	delta := target.Steps - c.Position()
	if delta == 0 {
		c.report(Report{Event: "at_target", Target: name, Pos: target.Steps})
		return errcode.OK
	}

	n := c.motor.Move(delta)
	c.setPosition(target.Steps)
	println("Info: penrack: moved to", name)
	c.report(Report{Event: "moved", Target: name, Steps: n, Pos: target.Steps})
	return errcode.OK
}

// Position returns the last committed position in steps.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// State returns the current motion state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setPosition(p int) {
	c.mu.Lock()
	c.pos = p
	c.mu.Unlock()
}

func (c *Controller) lookup(name string) (Position, bool) {
	for _, p := range c.table {
		if p.Name == name {
			return p, true
		}
	}
	return Position{}, false
}

func (c *Controller) report(r Report) {
	if c.conn == nil {
		return
	}
	c.conn.Publish(c.conn.NewMessage(topicState, r, false))
}
