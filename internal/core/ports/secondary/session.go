package secondary

import (
	"context"

	"gitlab.com/codepractice.net/internal/domain"
)

// SessionPresenceRepository mirrors live sessions into shared storage so any
// notifier instance can tell whether a user is online.
type SessionPresenceRepository interface {
	// SaveSession records the session with expiration
	SaveSession(ctx context.Context, session *domain.Session) error

	// RemoveSession forgets the session
	RemoveSession(ctx context.Context, connectionID string, userID int64) error

	// RefreshSession extends the expiration of a live session
	RefreshSession(ctx context.Context, connectionID string) error

	// CountUserSessions returns the number of unexpired sessions of a user
	CountUserSessions(ctx context.Context, userID int64) (int64, error)

	// RemoveInactiveSessions drops index entries whose session key expired
	RemoveInactiveSessions(ctx context.Context) (int, error)
}
