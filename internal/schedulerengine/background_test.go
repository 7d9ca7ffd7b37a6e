package schedulerengine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gitlab.com/codepractice.net/internal/adapter/logging"
	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/schedulerengine"
)

type countingPresence struct {
	refreshes atomic.Int32
	cleanups  atomic.Int32
	err       error
}

func (c *countingPresence) RefreshPresence(context.Context) error {
	c.refreshes.Add(1)
	return c.err
}

func (c *countingPresence) CleanupInactive(context.Context) error {
	c.cleanups.Add(1)
	return c.err
}

func TestPresenceCleanupRunsUntilCancelled(t *testing.T) {
	presence := &countingPresence{err: errors.New("redis down")}
	engine := schedulerengine.NewSchedulerEngine(
		&config.RedisConfig{CleanupInterval: 10 * time.Millisecond}, presence, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	engine.StartPresenceCleanupEngine(ctx)

	assert.Eventually(t, func() bool { return presence.cleanups.Load() >= 3 }, time.Second, 5*time.Millisecond,
		"errors do not stop the ticker")

	cancel()
	engine.Wait()
	after := presence.cleanups.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, presence.cleanups.Load())
	assert.Zero(t, presence.refreshes.Load())
}

func TestPresenceRefreshRunsOnItsOwnInterval(t *testing.T) {
	presence := &countingPresence{}
	engine := schedulerengine.NewSchedulerEngine(
		&config.RedisConfig{RefreshInterval: 10 * time.Millisecond}, presence, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	engine.StartPresenceRefreshEngine(ctx)
	engine.StartPresenceCleanupEngine(ctx)

	assert.Eventually(t, func() bool { return presence.refreshes.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	engine.Wait()
	assert.Zero(t, presence.cleanups.Load(), "a zero cleanup interval disables cleanup")
}

func TestPresenceTasksDisabled(t *testing.T) {
	presence := &countingPresence{}
	engine := schedulerengine.NewSchedulerEngine(&config.RedisConfig{}, presence, logging.NewNopLogger())

	engine.StartPresenceRefreshEngine(context.Background())
	engine.StartPresenceCleanupEngine(context.Background())
	engine.Wait()
	assert.Zero(t, presence.refreshes.Load())
	assert.Zero(t, presence.cleanups.Load())
}
