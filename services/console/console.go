// Package console is the report sink: it drains the report topics and
// writes each line to the attached console writer, CRLF-terminated, in the
// format the G-code sender on the other end of the serial port expects.
package console

import (
	"context"
	"io"

	"plotlink-go/bus"
)

var (
	topicConsole = bus.Topic{"report", "console"}
	topicError   = bus.Topic{"report", "error"}
)

type Service struct {
	conn *bus.Connection
	w    io.Writer
}

func New(conn *bus.Connection, w io.Writer) *Service {
	return &Service{conn: conn, w: w}
}

// Start runs the sink until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	go s.serviceLoop(ctx)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context) {
	repSub := s.conn.Subscribe(topicConsole)
	errSub := s.conn.Subscribe(topicError)
	defer s.conn.Unsubscribe(repSub)
	defer s.conn.Unsubscribe(errSub)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-repSub.Channel():
			if !ok {
				return
			}
			s.writeLine(asLine(msg.Payload))
		case msg, ok := <-errSub.Channel():
			if !ok {
				return
			}
			s.writeLine("[MSG:ERR " + asLine(msg.Payload) + "]")
		}
	}
}

func (s *Service) writeLine(line string) {
	if _, err := io.WriteString(s.w, line+"\r\n"); err != nil {
		println("Error: console write:", err.Error())
	}
}

func asLine(p any) string {
	if s, ok := p.(string); ok {
		return s
	}
	return ""
}
