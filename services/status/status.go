// Package status periodically logs the applied machine mode. It reads the
// mode through the relay's atomic accessor, so it shares no lock with the
// relay loop; the interval is reconfigurable over the bus.
package status

import (
	"context"
	"time"

	"plotlink-go/bus"
	"plotlink-go/wire"
)

var topicConfigStatus = bus.Topic{"config", "status"}

// ModeSource is anything exposing an applied mode; in practice the relay.
type ModeSource interface {
	Mode() wire.Mode
}

type Service struct {
	src      ModeSource
	interval time.Duration
}

func New(src ModeSource, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Service{src: src, interval: interval}
}

// Start the status service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigStatus)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: status service stopping")
			return
		case <-tick.C:
			println("Info: mode:", s.src.Mode().String())
		case msg := <-cfgSub.Channel():
			// Change tick interval if needed
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"]; ok {
					if seconds, ok := iv.(float64); ok && seconds > 0 {
						tick.Reset(time.Duration(seconds * float64(time.Second)))
						println("Info: status interval set to", int64(seconds), "seconds")
					}
				}
			}
		}
	}
}
