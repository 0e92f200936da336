package link

import (
	"sync"

	"plotlink-go/errcode"
	"plotlink-go/wire"
	"plotlink-go/x/boundbuf"
)

// Loopback joins a Master and a Responder in memory. Writes are delivered
// synchronously to the registered handler; polls copy the exposed payload
// into the caller's buffer, zero-padded to the transfer size. It backs the
// host simulator and the package tests.
type Loopback struct {
	mu      sync.Mutex
	resp    *boundbuf.Buf
	onWrite func(p []byte)

	sendErr error
	pollErr error
}

var (
	_ Master    = (*Loopback)(nil)
	_ Responder = (*Loopback)(nil)
)

func NewLoopback() *Loopback {
	return &Loopback{resp: boundbuf.New(wire.MaxTransfer)}
}

func (l *Loopback) Send(p []byte) error {
	l.mu.Lock()
	fn := l.onWrite
	err := l.sendErr
	l.mu.Unlock()
	if err != nil {
		return &errcode.E{C: errcode.Transport, Op: "link.Send", Err: err}
	}
	if fn != nil {
		cp := append([]byte(nil), p...)
		fn(cp)
	}
	return nil
}

func (l *Loopback) Poll(buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pollErr != nil {
		return 0, &errcode.E{C: errcode.Transport, Op: "link.Poll", Err: l.pollErr}
	}
	n := len(buf)
	if n > wire.MaxTransfer {
		n = wire.MaxTransfer
	}
	r := l.resp.Bytes()
	copied := copy(buf[:n], r)
	for i := copied; i < n; i++ {
		buf[i] = 0
	}
	return n, nil
}

func (l *Loopback) SetResponse(p []byte) error {
	l.mu.Lock()
	truncated := l.resp.Set(p)
	l.mu.Unlock()
	if truncated {
		return &errcode.E{C: errcode.Oversize, Op: "link.SetResponse"}
	}
	return nil
}

func (l *Loopback) OnWrite(fn func(p []byte)) {
	l.mu.Lock()
	l.onWrite = fn
	l.mu.Unlock()
}

// SetFault injects transport failures for tests. Nil clears.
func (l *Loopback) SetFault(send, poll error) {
	l.mu.Lock()
	l.sendErr = send
	l.pollErr = poll
	l.mu.Unlock()
}
