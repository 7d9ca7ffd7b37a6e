package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/streadway/amqp"

	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/ports/secondary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

var _ secondary.TaskQueue = (*Dispatcher)(nil)

// Dispatcher publishes submission tasks to the durable work queue.
// It keeps one connection and one confirm-mode channel and re-creates them
// when the broker drops them.
type Dispatcher struct {
	url    string
	queue  string
	cfg    *config.DispatchCfg
	dial   Dialer
	logger primary.Logger

	// sem serialises publishers; acquiring it honours the caller's context
	sem chan struct{}

	conn     Connection
	ch       Channel
	confirms chan amqp.Confirmation
	chClosed chan *amqp.Error
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDialer replaces the broker dialer
func WithDialer(dial Dialer) DispatcherOption {
	return func(d *Dispatcher) {
		d.dial = dial
	}
}

// NewDispatcher creates a dispatcher for the given work queue. No connection
// is opened until the first Dispatch.
func NewDispatcher(
	rabbitCfg *config.RabbitMQConfig,
	dispatchCfg *config.DispatchCfg,
	logger primary.Logger,
	options ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		url:    rabbitCfg.Url,
		queue:  rabbitCfg.CodeQueue,
		cfg:    dispatchCfg,
		dial:   DialAMQP,
		logger: logger.With("component", "dispatcher", "queue", rabbitCfg.CodeQueue),
		sem:    make(chan struct{}, 1),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Dispatch publishes task as a persistent message and waits for the broker
// to confirm it. While the broker is unreachable it retries every
// RetryDelay until MaxAttempts, Timeout or ctx stops it.
func (d *Dispatcher) Dispatch(ctx context.Context, task domain.SubmissionTask) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidTask, err)
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal submission task: %w", err)
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("dispatch submission %d: %w", task.SubmissionID, ctx.Err())
	}
	defer func() { <-d.sem }()

	for attempt := 1; ; attempt++ {
		err := d.publish(ctx, task.SubmissionID, body)
		if err == nil {
			d.logger.Info("Submission dispatched",
				"submissionId", task.SubmissionID,
				"taskId", task.TaskID,
				"userId", task.UserID,
				"language", task.Language)
			return nil
		}
		if errors.Is(err, errs.ErrPublishNotConfirmed) {
			d.logger.Error("Broker rejected submission", "submissionId", task.SubmissionID)
			return fmt.Errorf("dispatch submission %d: %w", task.SubmissionID, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("dispatch submission %d: %w", task.SubmissionID, ctx.Err())
		}

		d.logger.Warn("Broker unavailable, retrying",
			"submissionId", task.SubmissionID,
			"attempt", attempt,
			"retryIn", d.cfg.RetryDelay.String(),
			"error", err)

		if d.cfg.MaxAttempts > 0 && attempt >= d.cfg.MaxAttempts {
			return fmt.Errorf("dispatch submission %d: %w after %d attempts: %v", task.SubmissionID, errs.ErrRetryLimit, attempt, err)
		}
		if err := SleepContext(ctx, d.cfg.RetryDelay); err != nil {
			return fmt.Errorf("dispatch submission %d: %w", task.SubmissionID, err)
		}
	}
}

// publish must be called with sem held
func (d *Dispatcher) publish(ctx context.Context, submissionID int64, body []byte) error {
	if err := d.ensureChannel(); err != nil {
		return err
	}

	err := d.ch.Publish("", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatInt(submissionID, 10),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		d.reset()
		return fmt.Errorf("failed to publish: %w", err)
	}

	select {
	case confirm, ok := <-d.confirms:
		if !ok {
			d.reset()
			return fmt.Errorf("channel closed before publish was confirmed")
		}
		if !confirm.Ack {
			return errs.ErrPublishNotConfirmed
		}
		return nil
	case amqpErr := <-d.chClosed:
		d.reset()
		return fmt.Errorf("channel closed before publish was confirmed: %v", amqpErr)
	case <-ctx.Done():
		// an outstanding confirmation would be read by the next publish
		d.reset()
		return ctx.Err()
	}
}

func (d *Dispatcher) ensureChannel() error {
	if d.ch != nil && d.conn != nil && !d.conn.IsClosed() {
		select {
		case <-d.chClosed:
			d.reset()
		default:
			return nil
		}
	}
	d.reset()

	conn, err := d.dial(d.url, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclareDurableQueue(ch, d.queue, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", d.queue, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	d.conn = conn
	d.ch = ch
	d.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	d.chClosed = ch.NotifyClose(make(chan *amqp.Error, 1))
	d.logger.Info("Connected to broker")
	return nil
}

func (d *Dispatcher) reset() {
	if d.ch != nil {
		_ = d.ch.Close()
	}
	if d.conn != nil && !d.conn.IsClosed() {
		_ = d.conn.Close()
	}
	d.ch = nil
	d.conn = nil
	d.confirms = nil
	d.chClosed = nil
}

// Close releases the broker connection
func (d *Dispatcher) Close() error {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()
	d.reset()
	return nil
}
