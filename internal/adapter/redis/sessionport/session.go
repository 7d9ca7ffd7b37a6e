package sessionport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/ports/secondary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

const (
	sessionKeyPrefix   = "session:conn:"
	userSessionsPrefix = "session:user:"
	defaultExpiration  = 5 * time.Minute
)

var _ secondary.SessionPresenceRepository = (*SessionRepository)(nil)

// SessionRepository mirrors live push sessions into Redis. Each session is
// a key with expiration; a per-user set indexes the session keys.
type SessionRepository struct {
	redisClient *redis.Client
	expiration  time.Duration
	logger      primary.Logger
}

// NewSessionRepository creates a new Redis session repository
func NewSessionRepository(redisClient *redis.Client, expiration time.Duration, logger primary.Logger) *SessionRepository {
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	return &SessionRepository{
		redisClient: redisClient,
		expiration:  expiration,
		logger:      logger,
	}
}

func sessionKey(connectionID string) string {
	return sessionKeyPrefix + connectionID
}

func userKey(userID int64) string {
	return userSessionsPrefix + strconv.FormatInt(userID, 10)
}

// SaveSession saves the session with expiration and indexes it under its user
func (r *SessionRepository) SaveSession(ctx context.Context, session *domain.Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ConnectionID), sessionJSON, r.expiration)
		pipe.SAdd(ctx, userKey(session.UserID), session.ConnectionID)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save session", "connectionId", session.ConnectionID, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// RemoveSession deletes the session and its index entry
func (r *SessionRepository) RemoveSession(ctx context.Context, connectionID string, userID int64) error {
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(connectionID))
		pipe.SRem(ctx, userKey(userID), connectionID)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to remove session", "connectionId", connectionID, "error", err)
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// RefreshSession extends the session's expiration
func (r *SessionRepository) RefreshSession(ctx context.Context, connectionID string) error {
	ok, err := r.redisClient.Expire(ctx, sessionKey(connectionID), r.expiration).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	if !ok {
		return errs.ErrSessionExpired
	}
	return nil
}

// CountUserSessions counts the user's unexpired sessions across every
// notifier instance, pruning expired index entries on the way
func (r *SessionRepository) CountUserSessions(ctx context.Context, userID int64) (int64, error) {
	key := userKey(userID)
	connectionIDs, err := r.redisClient.SMembers(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get user sessions: %w", err)
	}

	live, expired, err := r.partition(ctx, connectionIDs)
	if err != nil {
		return 0, err
	}
	if len(expired) > 0 {
		if err := r.redisClient.SRem(ctx, key, expired...).Err(); err != nil {
			r.logger.Warn("Failed to prune expired sessions", "userId", userID, "error", err)
		}
	}
	return int64(len(live)), nil
}

// RemoveInactiveSessions removes index entries whose session key expired
func (r *SessionRepository) RemoveInactiveSessions(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.redisClient.Scan(ctx, cursor, userSessionsPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan session index keys: %w", err)
		}

		for _, key := range keys {
			connectionIDs, err := r.redisClient.SMembers(ctx, key).Result()
			if err != nil {
				r.logger.Error("Failed to get session ids", "key", key, "error", err)
				continue
			}
			_, expired, err := r.partition(ctx, connectionIDs)
			if err != nil {
				r.logger.Error("Failed to check sessions", "key", key, "error", err)
				continue
			}
			if len(expired) == 0 {
				continue
			}
			n, err := r.redisClient.SRem(ctx, key, expired...).Result()
			if err != nil {
				r.logger.Error("Failed to remove expired sessions", "key", key, "error", err)
				continue
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// partition splits connection ids by whether their session key still exists
func (r *SessionRepository) partition(ctx context.Context, connectionIDs []string) (live, expired []interface{}, err error) {
	if len(connectionIDs) == 0 {
		return nil, nil, nil
	}

	cmds := make([]*redis.IntCmd, len(connectionIDs))
	_, err = r.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range connectionIDs {
			cmds[i] = pipe.Exists(ctx, sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check session keys: %w", err)
	}

	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			live = append(live, connectionIDs[i])
		} else {
			expired = append(expired, connectionIDs[i])
		}
	}
	return live, expired, nil
}
