package push

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/push/registry"
)

// Broadcaster pushes submission results to every connection registered for
// the result's user. Delivery is best effort.
type Broadcaster struct {
	registry     *registry.Registry
	writeTimeout time.Duration
	logger       primary.Logger
}

func NewBroadcaster(reg *registry.Registry, writeTimeout time.Duration, logger primary.Logger) *Broadcaster {
	return &Broadcaster{
		registry:     reg,
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "broadcaster"),
	}
}

// Deliver sends the result payload verbatim to each of the user's live
// connections and returns how many sends succeeded. A failing connection
// never fails the call; only a context that is already done does.
func (b *Broadcaster) Deliver(ctx context.Context, result domain.SubmissionResult) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	conns := b.registry.Lookup(result.UserID)
	if len(conns) == 0 {
		b.logger.Debug("No live connections, dropping result",
			"submissionId", result.SubmissionID,
			"userId", result.UserID)
		return 0, nil
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, conn := range conns {
		wg.Add(1)
		go func(conn primary.PushConn) {
			defer wg.Done()
			if err := b.send(ctx, conn, result); err != nil {
				b.logger.Warn("Failed to push result",
					"submissionId", result.SubmissionID,
					"userId", result.UserID,
					"connectionId", conn.ID(),
					"transport", conn.Transport(),
					"error", err)
				return
			}
			delivered.Add(1)
		}(conn)
	}
	wg.Wait()

	n := int(delivered.Load())
	b.logger.Info("Result delivered",
		"submissionId", result.SubmissionID,
		"userId", result.UserID,
		"connections", len(conns),
		"delivered", n)
	return n, nil
}

func (b *Broadcaster) send(ctx context.Context, conn primary.PushConn, result domain.SubmissionResult) error {
	if b.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.writeTimeout)
		defer cancel()
	}
	return conn.Send(ctx, EventResult, result.Payload)
}

// HandleResult lets the result listener feed the broadcaster directly
func (b *Broadcaster) HandleResult(ctx context.Context, result domain.SubmissionResult) error {
	_, err := b.Deliver(ctx, result)
	return err
}
