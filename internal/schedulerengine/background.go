package schedulerengine

import (
	"context"
	"sync"
	"time"

	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/ports/primary"
)

// PresenceMaintainer keeps the shared presence index in step with the
// connections served by this instance
type PresenceMaintainer interface {
	RefreshPresence(ctx context.Context) error
	CleanupInactive(ctx context.Context) error
}

// SchedulerEngine runs the periodic maintenance tasks of the notifier
type SchedulerEngine struct {
	RedisCfg *config.RedisConfig
	presence PresenceMaintainer
	logger   primary.Logger
	wg       sync.WaitGroup
}

func NewSchedulerEngine(
	redisCfg *config.RedisConfig,
	presence PresenceMaintainer,
	logger primary.Logger,
) *SchedulerEngine {
	return &SchedulerEngine{
		RedisCfg: redisCfg,
		presence: presence,
		logger:   logger,
	}
}

// StartPresenceRefreshEngine keeps joined connections online in the
// presence index until ctx is cancelled. Clients are not required to ping.
func (s *SchedulerEngine) StartPresenceRefreshEngine(ctx context.Context) {
	s.every(ctx, "presence refresh", s.RedisCfg.RefreshInterval, s.presence.RefreshPresence)
}

// StartPresenceCleanupEngine prunes expired presence entries until ctx is
// cancelled
func (s *SchedulerEngine) StartPresenceCleanupEngine(ctx context.Context) {
	s.every(ctx, "presence cleanup", s.RedisCfg.CleanupInterval, s.presence.CleanupInactive)
}

// every runs task on a ticker. A zero interval disables the task.
func (s *SchedulerEngine) every(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	if interval <= 0 {
		s.logger.Info("Scheduled task disabled", "task", name)
		return
	}

	ticker := time.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := task(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("Scheduled task failed", "task", name, "error", err)
				}
			}
		}
	}()
}

// Wait blocks until every started task returned
func (s *SchedulerEngine) Wait() {
	s.wg.Wait()
}
