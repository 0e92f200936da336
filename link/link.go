// Package link models the two-wire control link between the bridge and the
// penrack unit. The bridge side is a Master: it writes short command
// payloads to the unit and polls the unit's currently exposed payload on a
// fixed period, whether or not anything changed. The unit side is a
// Responder: it owns the payload returned to the next poll and receives
// master writes as they arrive.
//
// Transfers are bounded by wire.MaxTransfer. A poll that returns only
// padding is not an error; it simply means the unit has nothing new.
package link

import (
	"tinygo.org/x/drivers"

	"plotlink-go/errcode"
	"plotlink-go/wire"
)

// DefaultAddr is the unit's fixed 7-bit address.
const DefaultAddr uint16 = 0x08

// Master is the bridge's view of the link.
type Master interface {
	// Send writes one payload to the unit.
	Send(p []byte) error
	// Poll reads the unit's exposed payload into buf and returns the number
	// of bytes read. The read is fixed-size; trailing fill is the caller's
	// to strip (see TrimPadding).
	Poll(buf []byte) (int, error)
}

// Responder is the unit's view of the link. Hardware attachment in
// peripheral role is board-specific glue outside this module; Loopback
// realizes the contract in-process.
type Responder interface {
	// SetResponse exposes p as the payload for subsequent polls.
	SetResponse(p []byte) error
	// OnWrite registers the handler for master writes. Payloads are
	// delivered one at a time, in arrival order.
	OnWrite(fn func(p []byte))
}

// I2CMaster drives the link over an I2C controller.
type I2CMaster struct {
	bus  drivers.I2C
	addr uint16
}

// NewI2CMaster wraps an I2C controller. addr 0 selects DefaultAddr.
func NewI2CMaster(bus drivers.I2C, addr uint16) *I2CMaster {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &I2CMaster{bus: bus, addr: addr}
}

func (m *I2CMaster) Send(p []byte) error {
	if err := m.bus.Tx(m.addr, p, nil); err != nil {
		return &errcode.E{C: errcode.Transport, Op: "link.Send", Err: err}
	}
	return nil
}

func (m *I2CMaster) Poll(buf []byte) (int, error) {
	n := len(buf)
	if n > wire.MaxTransfer {
		n = wire.MaxTransfer
	}
	if err := m.bus.Tx(m.addr, nil, buf[:n]); err != nil {
		return 0, &errcode.E{C: errcode.Transport, Op: "link.Poll", Err: err}
	}
	return n, nil
}

// TrimPadding strips the trailing fill bytes a fixed-size poll read carries
// when the exposed payload is shorter than the transfer. Idle peripherals
// fill with 0xFF, in-process responders with zero bytes.
func TrimPadding(p []byte) []byte {
	i := len(p)
	for i > 0 && (p[i-1] == 0x00 || p[i-1] == 0xFF) {
		i--
	}
	return p[:i]
}
