// Package rabbitmqtest provides an in-memory broker implementing the
// rabbitmq.Dialer contract for tests.
package rabbitmqtest

import (
	"errors"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"gitlab.com/codepractice.net/internal/adapter/rabbitmq"
)

// ErrUnreachable is returned by Dial while the broker is down
var ErrUnreachable = errors.New("dial tcp: connection refused")

// Message is a stored publishing
type Message struct {
	amqp.Publishing
	Redelivered bool
}

// Nack records a negative acknowledgement
type Nack struct {
	Body    []byte
	Requeue bool
}

type queue struct {
	name    string
	durable bool
	args    amqp.Table
	ready   []Message
	acked   [][]byte
	nacked  []Nack
	wake    chan struct{}
}

func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Broker is a single-node in-memory broker with durable queues, publisher
// confirms, prefetch and manual acknowledgement.
type Broker struct {
	mu           sync.Mutex
	queues       map[string]*queue
	conns        []*Conn
	down         bool
	failDials    int
	dials        int
	heartbeats   []time.Duration
	nackPublish  bool
	publishCount int
}

func NewBroker() *Broker {
	return &Broker{queues: make(map[string]*queue)}
}

// Dialer returns a rabbitmq.Dialer bound to the broker
func (b *Broker) Dialer() rabbitmq.Dialer {
	return func(url string, heartbeat time.Duration) (rabbitmq.Connection, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.dials++
		b.heartbeats = append(b.heartbeats, heartbeat)
		if b.down {
			return nil, ErrUnreachable
		}
		if b.failDials > 0 {
			b.failDials--
			return nil, ErrUnreachable
		}
		c := &Conn{broker: b}
		b.conns = append(b.conns, c)
		return c, nil
	}
}

// FailNextDials makes the next n dials fail
func (b *Broker) FailNextDials(n int) {
	b.mu.Lock()
	b.failDials = n
	b.mu.Unlock()
}

// SetDown makes every dial fail until SetDown(false)
func (b *Broker) SetDown(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}

// NackPublishes makes publisher confirms negative
func (b *Broker) NackPublishes(nack bool) {
	b.mu.Lock()
	b.nackPublish = nack
	b.mu.Unlock()
}

// Dials returns how many times Dial was called
func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Publishes returns how many messages were published through the broker
func (b *Broker) Publishes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publishCount
}

// Heartbeats returns the heartbeat passed to every Dial
func (b *Broker) Heartbeats() []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Duration(nil), b.heartbeats...)
}

// DropConnections force-closes every open connection, as a broker restart would
func (b *Broker) DropConnections() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, c := range conns {
		c.shutdown(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED - broker shutdown", Server: true})
	}
}

// Enqueue publishes body to name as the runner would, declaring the queue
// durable when it does not exist yet
func (b *Broker) Enqueue(name string, body []byte) {
	b.mu.Lock()
	q := b.declareLocked(name, true, nil)
	q.ready = append(q.ready, Message{Publishing: amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}})
	b.mu.Unlock()
	q.signal()
}

// QueueState is a snapshot of one queue
type QueueState struct {
	Exists  bool
	Durable bool
	Args    amqp.Table
	Ready   []Message
	Acked   [][]byte
	Nacked  []Nack
}

func (b *Broker) Queue(name string) QueueState {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return QueueState{}
	}
	return QueueState{
		Exists:  true,
		Durable: q.durable,
		Args:    q.args,
		Ready:   append([]Message(nil), q.ready...),
		Acked:   append([][]byte(nil), q.acked...),
		Nacked:  append([]Nack(nil), q.nacked...),
	}
}

func (b *Broker) declareLocked(name string, durable bool, args amqp.Table) *queue {
	q, ok := b.queues[name]
	if !ok {
		q = &queue{name: name, durable: durable, args: args, wake: make(chan struct{}, 1)}
		b.queues[name] = q
	}
	return q
}

func (b *Broker) removeConn(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, other := range b.conns {
		if other == c {
			b.conns = append(b.conns[:i], b.conns[i+1:]...)
			return
		}
	}
}
