// Package bus is the in-process pub/sub spine of the firmware. The relay
// publishes console report lines and the retained applied mode on it; the
// console sink, the status reporter and the penrack state feed all hang off
// subscriptions. Delivery is per-subscription buffered with drop-oldest
// overflow, so a slow sink never blocks a control loop.
package bus

import (
	"strings"
	"sync"
)

// Topic is a path of plain string segments, e.g. {"report", "console"}.
type Topic []string

func (t Topic) key() string { return strings.Join(t, "/") }

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type Bus struct {
	mu       sync.RWMutex
	subs     map[string][]*Subscription
	retained map[string]*Message
	qLen     int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		subs:     make(map[string][]*Subscription),
		retained: make(map[string]*Message),
		qLen:     queueLen,
	}
}

// NewMessage builds a message for topic t.
func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// Publish delivers a message to all subscribers of its exact topic.
// A retained message with a nil payload clears the retained slot.
func (b *Bus) Publish(msg *Message) {
	k := msg.Topic.key()
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[k] {
		select {
		case sub.ch <- msg:
		default:
			// drop oldest if queue full
			<-sub.ch
			sub.ch <- msg
		}
	}

	if msg.Retained {
		if msg.Payload == nil {
			delete(b.retained, k)
		} else {
			b.retained[k] = msg
		}
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	k := sub.topic.key()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[k] = append(b.subs[k], sub)

	// Deliver retained message if present.
	if r := b.retained[k]; r != nil {
		select {
		case sub.ch <- r:
		default:
		}
	}
}

func (b *Bus) removeSubscription(sub *Subscription) {
	k := sub.topic.key()
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[k]
	for i, s := range list {
		if s == sub {
			b.subs[k] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[k]) == 0 {
		delete(b.subs, k)
	}
}

// Connection groups subscriptions under one owner so a service can tear
// everything down in one call.
type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

// NewMessage builds a message for topic t.
func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.bus.addSubscription(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.removeSubscription(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.removeSubscription(sub)
		close(sub.ch)
	}
}
