package rabbitmqtest

import (
	"errors"
	"sync"

	"github.com/streadway/amqp"

	"gitlab.com/codepractice.net/internal/adapter/rabbitmq"
)

// Conn is a fake broker connection
type Conn struct {
	broker *Broker

	mu       sync.Mutex
	closed   bool
	notify   []chan *amqp.Error
	channels []*Channel
}

func (c *Conn) Channel() (rabbitmq.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &Channel{conn: c, broker: c.broker, unacked: make(map[uint64]*pending)}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *Conn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Close() error {
	if c.IsClosed() {
		return amqp.ErrClosed
	}
	c.shutdown(nil)
	return nil
}

func (c *Conn) shutdown(reason *amqp.Error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	channels := c.channels
	notify := c.notify
	c.channels = nil
	c.notify = nil
	c.mu.Unlock()

	for _, ch := range channels {
		ch.shutdown(reason)
	}
	for _, n := range notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	c.broker.removeConn(c)
}

type pending struct {
	q   *queue
	msg Message
}

type consumer struct {
	tag  string
	q    *queue
	out  chan amqp.Delivery
	stop chan struct{}
	done chan struct{}
}

// Channel is a fake broker channel
type Channel struct {
	conn   *Conn
	broker *Broker

	mu        sync.Mutex
	closed    bool
	confirm   bool
	prefetch  int
	nextTag   uint64
	pubSeq    uint64
	unacked   map[uint64]*pending
	confirms  []chan amqp.Confirmation
	notify    []chan *amqp.Error
	consumers []*consumer
}

var errNotFound = &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue"}

func (ch *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if ch.isClosed() {
		return amqp.Queue{}, amqp.ErrClosed
	}
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	if q, ok := ch.broker.queues[name]; ok && q.durable != durable {
		return amqp.Queue{}, &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg 'durable'"}
	}
	q := ch.broker.declareLocked(name, durable, args)
	return amqp.Queue{Name: q.name, Messages: len(q.ready)}, nil
}

func (ch *Channel) Qos(prefetchCount, prefetchSize int, global bool) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	ch.prefetch = prefetchCount
	return nil
}

func (ch *Channel) Confirm(noWait bool) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	ch.confirm = true
	return nil
}

func (ch *Channel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		close(confirm)
		return confirm
	}
	ch.confirms = append(ch.confirms, confirm)
	return confirm
}

func (ch *Channel) NotifyClose(c chan *amqp.Error) chan *amqp.Error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		close(c)
		return c
	}
	ch.notify = append(ch.notify, c)
	return c
}

func (ch *Channel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	ch.pubSeq++

	b := ch.broker
	b.mu.Lock()
	ack := !b.nackPublish
	var target *queue
	if exchange == "" {
		target = b.queues[key]
	}
	if target != nil && ack {
		msg.Body = append([]byte(nil), msg.Body...)
		target.ready = append(target.ready, Message{Publishing: msg})
	}
	b.publishCount++
	b.mu.Unlock()
	if target != nil {
		target.signal()
	}

	if ch.confirm {
		for _, c := range ch.confirms {
			c <- amqp.Confirmation{DeliveryTag: ch.pubSeq, Ack: ack}
		}
	}
	return nil
}

func (ch *Channel) Consume(queueName, tag string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return nil, amqp.ErrClosed
	}
	ch.broker.mu.Lock()
	q, ok := ch.broker.queues[queueName]
	ch.broker.mu.Unlock()
	if !ok {
		return nil, errNotFound
	}
	if autoAck {
		return nil, errors.New("rabbitmqtest: autoAck consumers are not supported")
	}
	c := &consumer{
		tag:  tag,
		q:    q,
		out:  make(chan amqp.Delivery),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	ch.consumers = append(ch.consumers, c)
	go ch.deliver(c)
	return c.out, nil
}

func (ch *Channel) inflight() int {
	return len(ch.unacked)
}

func (ch *Channel) deliver(c *consumer) {
	defer close(c.done)
	defer close(c.out)
	for {
		ch.mu.Lock()
		closed := ch.closed
		canTake := ch.prefetch <= 0 || ch.inflight() < ch.prefetch
		ch.mu.Unlock()
		if closed {
			return
		}

		var msg Message
		var have bool
		if canTake {
			ch.broker.mu.Lock()
			if len(c.q.ready) > 0 {
				msg = c.q.ready[0]
				c.q.ready = c.q.ready[1:]
				have = true
			}
			ch.broker.mu.Unlock()
		}

		if !have {
			select {
			case <-c.q.wake:
			case <-c.stop:
				return
			}
			continue
		}

		ch.mu.Lock()
		ch.nextTag++
		tag := ch.nextTag
		ch.unacked[tag] = &pending{q: c.q, msg: msg}
		ch.mu.Unlock()

		d := amqp.Delivery{
			Acknowledger: ch,
			ConsumerTag:  c.tag,
			DeliveryTag:  tag,
			Redelivered:  msg.Redelivered,
			RoutingKey:   c.q.name,
			ContentType:  msg.ContentType,
			DeliveryMode: msg.DeliveryMode,
			MessageId:    msg.MessageId,
			Body:         msg.Body,
		}
		select {
		case c.out <- d:
		case <-c.stop:
			return
		}
	}
}

// Ack implements amqp.Acknowledger
func (ch *Channel) Ack(tag uint64, multiple bool) error {
	p, err := ch.take(tag)
	if err != nil {
		return err
	}
	ch.broker.mu.Lock()
	p.q.acked = append(p.q.acked, p.msg.Body)
	ch.broker.mu.Unlock()
	p.q.signal()
	return nil
}

// Nack implements amqp.Acknowledger
func (ch *Channel) Nack(tag uint64, multiple bool, requeue bool) error {
	p, err := ch.take(tag)
	if err != nil {
		return err
	}
	ch.broker.mu.Lock()
	p.q.nacked = append(p.q.nacked, Nack{Body: p.msg.Body, Requeue: requeue})
	if requeue {
		p.msg.Redelivered = true
		p.q.ready = append([]Message{p.msg}, p.q.ready...)
	}
	ch.broker.mu.Unlock()
	p.q.signal()
	return nil
}

// Reject implements amqp.Acknowledger
func (ch *Channel) Reject(tag uint64, requeue bool) error {
	return ch.Nack(tag, false, requeue)
}

func (ch *Channel) take(tag uint64) (*pending, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return nil, amqp.ErrClosed
	}
	p, ok := ch.unacked[tag]
	if !ok {
		return nil, &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - unknown delivery tag"}
	}
	delete(ch.unacked, tag)
	return p, nil
}

func (ch *Channel) isClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

func (ch *Channel) Close() error {
	if ch.isClosed() {
		return amqp.ErrClosed
	}
	ch.shutdown(nil)
	return nil
}

// shutdown stops consumers and requeues unacknowledged deliveries
func (ch *Channel) shutdown(reason *amqp.Error) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	consumers := ch.consumers
	notify := ch.notify
	confirms := ch.confirms
	unacked := ch.unacked
	ch.consumers = nil
	ch.notify = nil
	ch.confirms = nil
	ch.unacked = make(map[uint64]*pending)
	ch.mu.Unlock()

	for _, c := range consumers {
		close(c.stop)
		<-c.done
	}

	ch.broker.mu.Lock()
	for _, p := range unacked {
		p.msg.Redelivered = true
		p.q.ready = append([]Message{p.msg}, p.q.ready...)
	}
	ch.broker.mu.Unlock()
	for _, p := range unacked {
		p.q.signal()
	}

	for _, n := range notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	for _, c := range confirms {
		close(c)
	}
}
