//go:build rp2040

// Command dlc32-bridge is the bridge-side firmware entry point: I2C0 as
// the link master, UART0 as the local console channel and report sink.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"plotlink-go/bus"
	"plotlink-go/errcode"
	"plotlink-go/gcode"
	"plotlink-go/link"
	"plotlink-go/services/console"
	"plotlink-go/services/relay"
	"plotlink-go/services/status"
	"plotlink-go/wire"
)

const consoleBaud = 115200

// uartExec validates forwarded G-code shape; the motion pipeline proper
// hangs off the same console stream.
type uartExec struct{}

func (uartExec) Execute(line string) errcode.Code {
	if _, err := gcode.Parse(line); err != nil {
		return errcode.CommandFailed
	}
	println("Info: exec:", line)
	return errcode.OK
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot: dlc32-bridge")

	if err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 100 * machine.KHz,
		SDA:       machine.GP0,
		SCL:       machine.GP1,
	}); err != nil {
		println("Error: i2c configure:", err.Error())
	}

	uart := uartx.UART0
	_ = uart.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       machine.GP16,
		RX:       machine.GP17,
	})

	ctx := context.Background()
	b := bus.NewBus(16)

	rly := relay.New(
		b.NewConnection("relay"),
		link.NewI2CMaster(machine.I2C0, link.DefaultAddr),
		uartExec{},
		relay.Config{},
	)
	_ = rly.Start(ctx)
	_ = console.New(b.NewConnection("console"), uart).Start(ctx)
	_ = status.New(rly, 10*time.Second).Start(ctx, b.NewConnection("status"))

	// Accumulate newline-framed lines from the console UART and hand them
	// to the relay.
	buf := make([]byte, 64)
	line := make([]byte, 0, wire.MaxLine)
	for {
		n, err := uart.RecvSomeContext(ctx, buf)
		if err != nil {
			continue
		}
		for _, c := range buf[:n] {
			if c == '\n' {
				if len(line) > 0 && !rly.InjectLine(line) {
					println("Info: line dropped, queue full")
				}
				line = line[:0]
				continue
			}
			if len(line) < wire.MaxLine {
				line = append(line, c)
			}
		}
	}
}
