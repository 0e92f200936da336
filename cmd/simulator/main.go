// Command simulator runs both ends of the link in one process over an
// in-memory loopback: the penrack unit (mode sensor + carousel) and the
// bridge (relay + console sink + status reporter), with an interactive
// shell to flip the simulated mode inputs and inject lines or commands.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/shlex"

	"plotlink-go/bus"
	"plotlink-go/drivers/stepper"
	"plotlink-go/errcode"
	"plotlink-go/gcode"
	"plotlink-go/link"
	"plotlink-go/services/console"
	"plotlink-go/services/modesense"
	"plotlink-go/services/penrack"
	"plotlink-go/services/relay"
	"plotlink-go/services/status"
)

// simPin is a discrete input toggled from the shell.
type simPin struct{ on atomic.Bool }

func (p *simPin) Get() bool { return p.on.Load() }

// nopPin swallows stepper output; the controller's reports show the motion.
type nopPin struct{}

func (nopPin) Set(bool) {}

// hostExec stands in for the G-code subsystem: it validates line shape and
// logs what would run.
type hostExec struct{}

func (hostExec) Execute(line string) errcode.Code {
	if _, err := gcode.Parse(line); err != nil {
		println("Error: exec:", err.Error())
		return errcode.CommandFailed
	}
	println("Info: exec:", line)
	return errcode.OK
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(32)
	lb := link.NewLoopback()

	// Unit side.
	spindle, laser, drawing := &simPin{}, &simPin{}, &simPin{}
	sensor := modesense.New(spindle, laser, drawing, lb, modesense.Config{})
	motor := stepper.New(nopPin{}, nopPin{}, nopPin{}, stepper.Config{StepDelay: 200 * time.Microsecond})
	rack, err := penrack.New(b.NewConnection("penrack"), motor, penrack.Config{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "penrack:", err)
		os.Exit(1)
	}
	rack.Bind(lb)
	if err := sensor.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "modesense:", err)
		os.Exit(1)
	}

	// Bridge side.
	rly := relay.New(b.NewConnection("relay"), lb, hostExec{}, relay.Config{})
	_ = rly.Start(ctx)
	_ = console.New(b.NewConnection("console"), os.Stdout).Start(ctx)
	_ = status.New(rly, 15*time.Second).Start(ctx, b.NewConnection("status"))

	// Echo carousel activity.
	go func() {
		conn := b.NewConnection("rack-watch")
		sub := conn.Subscribe(bus.Topic{"penrack", "state"})
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sub.Channel():
				r := msg.Payload.(penrack.Report)
				fmt.Printf("penrack: %s target=%s pos=%d\n", r.Event, r.Target, r.Pos)
			}
		}
	}()

	fmt.Println("commands: mode <spindle|laser|drawing|off> | line <raw> | send <json> | pos | quit")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		input := sc.Text()
		fields, err := shlex.Split(input)
		if err != nil || len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "mode":
			if len(fields) < 2 {
				fmt.Println("mode: applied =", rly.Mode().String(), "sensed =", sensor.Last().String())
				continue
			}
			spindle.on.Store(fields[1] == "spindle")
			laser.on.Store(fields[1] == "laser")
			drawing.on.Store(fields[1] == "drawing")
		case "line":
			rest := strings.TrimSpace(strings.TrimPrefix(input, "line"))
			if !rly.InjectLine([]byte(rest)) {
				fmt.Println("line queue full")
			}
		case "send":
			rest := strings.TrimSpace(strings.TrimPrefix(input, "send"))
			if err := rly.SendCommand([]byte(rest)); err != nil {
				fmt.Println("send:", err)
			}
		case "pos":
			fmt.Println("position:", rack.Position(), "state:", rack.State())
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
