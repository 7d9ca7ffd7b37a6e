// Package resultlistener consumes runner verdicts from the results queue and
// hands them to a ResultHandler, acknowledging each delivery only after the
// handler accepted it.
package resultlistener

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"gitlab.com/codepractice.net/internal/adapter/rabbitmq"
	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

// State of the consume loop
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConsuming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConsuming:
		return "CONSUMING"
	default:
		return "DISCONNECTED"
	}
}

// ResultHandler receives every well-formed result. Returning an error leaves
// the message eligible for redelivery.
type ResultHandler interface {
	HandleResult(ctx context.Context, result domain.SubmissionResult) error
}

// Listener keeps one long-lived subscription to the results queue
type Listener struct {
	url     string
	queue   string
	cfg     *config.ListenerCfg
	dial    rabbitmq.Dialer
	handler ResultHandler
	logger  primary.Logger

	state atomic.Int32
}

type Option func(*Listener)

// WithDialer replaces the broker dialer
func WithDialer(dial rabbitmq.Dialer) Option {
	return func(l *Listener) {
		l.dial = dial
	}
}

func New(
	rabbitCfg *config.RabbitMQConfig,
	listenerCfg *config.ListenerCfg,
	handler ResultHandler,
	logger primary.Logger,
	options ...Option,
) *Listener {
	l := &Listener{
		url:     rabbitCfg.Url,
		queue:   rabbitCfg.ResultsQueue,
		cfg:     listenerCfg,
		dial:    rabbitmq.DialAMQP,
		handler: handler,
		logger:  logger.With("component", "result_listener", "queue", rabbitCfg.ResultsQueue),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) setState(s State) {
	if State(l.state.Swap(int32(s))) != s {
		l.logger.Debug("Result listener state changed", "state", s.String())
	}
}

// Run consumes until ctx is cancelled, reconnecting after every broker
// failure. It returns nil on shutdown and errs.ErrReconnectLimit when
// MaxReconnects consecutive connection cycles failed.
func (l *Listener) Run(ctx context.Context) error {
	defer l.setState(StateDisconnected)

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		consumed, err := l.consume(ctx)
		l.setState(StateDisconnected)
		if ctx.Err() != nil {
			l.logger.Info("Result listener stopped")
			return nil
		}

		if consumed {
			failures = 0
		} else {
			failures++
		}
		l.logger.Warn("Result listener disconnected",
			"error", err,
			"failedAttempts", failures,
			"retryIn", l.cfg.ReconnectDelay.String())

		if l.cfg.MaxReconnects > 0 && failures >= l.cfg.MaxReconnects {
			return fmt.Errorf("%w after %d attempts: %v", errs.ErrReconnectLimit, failures, err)
		}
		if err := rabbitmq.SleepContext(ctx, l.cfg.ReconnectDelay); err != nil {
			l.logger.Info("Result listener stopped")
			return nil
		}
	}
}

// consume runs one connection cycle. consumed reports whether the cycle got
// as far as CONSUMING.
func (l *Listener) consume(ctx context.Context) (consumed bool, err error) {
	l.setState(StateConnecting)

	conn, err := l.dial(l.url, l.cfg.Heartbeat)
	if err != nil {
		return false, fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() {
		if !conn.IsClosed() {
			_ = conn.Close()
		}
	}()
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))

	ch, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	var args amqp.Table
	if l.cfg.DeadLetterExchange != "" {
		args = amqp.Table{"x-dead-letter-exchange": l.cfg.DeadLetterExchange}
	}
	if err := rabbitmq.DeclareDurableQueue(ch, l.queue, args); err != nil {
		return false, fmt.Errorf("failed to declare queue %s: %w", l.queue, err)
	}

	prefetch := l.cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return false, fmt.Errorf("failed to set prefetch: %w", err)
	}

	tag := "notifier-" + uuid.NewString()
	deliveries, err := ch.Consume(l.queue, tag, false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start consuming: %w", err)
	}

	l.setState(StateConsuming)
	l.logger.Info("Consuming results", "consumerTag", tag, "prefetch", prefetch)

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case amqpErr := <-connClosed:
			return true, fmt.Errorf("connection closed: %v", amqpErr)
		case amqpErr := <-chClosed:
			return true, fmt.Errorf("channel closed: %v", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return true, errs.ErrDeliveryChannelClose
			}
			l.handle(ctx, d)
		}
	}
}

func (l *Listener) handle(ctx context.Context, d amqp.Delivery) {
	result, err := domain.ParseSubmissionResult(d.Body)
	if err != nil {
		l.logger.Error("Discarding malformed result",
			"deliveryTag", d.DeliveryTag,
			"requeue", l.cfg.RequeuePoison,
			"error", fmt.Errorf("%w: %v", errs.ErrMalformedResult, err),
			"body", preview(d.Body))
		if err := d.Nack(false, l.cfg.RequeuePoison); err != nil {
			l.logger.Error("Failed to nack result", "deliveryTag", d.DeliveryTag, "error", err)
		}
		return
	}

	log := l.logger.With("submissionId", result.SubmissionID, "userId", result.UserID)
	if err := l.forward(ctx, result); errors.Is(err, errs.ErrHandlerPanic) {
		// a panic repeats on redelivery and would block the queue
		log.Error("Discarding result that crashed the handler",
			"requeue", l.cfg.RequeuePoison,
			"error", err,
			"body", preview(d.Body))
		if err := d.Nack(false, l.cfg.RequeuePoison); err != nil {
			log.Error("Failed to nack result", "error", err)
		}
		return
	} else if err != nil {
		log.Warn("Result not forwarded, requeueing", "error", err)
		if err := d.Nack(false, true); err != nil {
			log.Error("Failed to nack result", "error", err)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.Error("Failed to ack result", "error", err)
		return
	}
	log.Debug("Result acknowledged", "status", result.Status)
}

func (l *Listener) forward(ctx context.Context, result domain.SubmissionResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errs.ErrHandlerPanic, r)
		}
	}()
	return l.handler.HandleResult(ctx, result)
}

func preview(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
