// Command jsonconsole talks to a running bridge over its console serial
// port: report lines ([JSON:...], [MODE:...]) stream to stdout, and stdin
// lines go up the local channel. A line starting with '{' is wrapped with
// the J: marker; anything else is forwarded untouched.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/tarm/serial"
)

func main() {
	port := flag.String("port", "/dev/ttyUSB0", "bridge console serial port")
	baud := flag.Int("baud", 115200, "baud rate")
	flag.Parse()

	p, err := serial.OpenPort(&serial.Config{Name: *port, Baud: *baud})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer p.Close()

	go func() {
		sc := bufio.NewScanner(p)
		for sc.Scan() {
			fmt.Println(sc.Text())
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
		}
		os.Exit(0)
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '{' {
			line = "J:" + line
		}
		if _, err := p.Write([]byte(line + "\n")); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
	}
}
