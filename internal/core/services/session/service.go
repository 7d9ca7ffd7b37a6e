package session

import (
	"context"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
)

// ISessionService manages which push connections receive a user's results
type ISessionService interface {
	// Join declares the connection's interest in the user's results
	Join(ctx context.Context, conn primary.PushConn, userID int64) error

	// Leave withdraws the connection's interest in the user's results
	Leave(ctx context.Context, connectionID string, userID int64) error

	// Disconnect forgets everything about a closed connection
	Disconnect(ctx context.Context, connectionID string)

	// Touch extends the presence of a connection that is still alive
	Touch(ctx context.Context, connectionID string)

	// RefreshPresence extends the presence of every connection joined on
	// this instance
	RefreshPresence(ctx context.Context) error

	// OnlineCount returns the user's sessions across every notifier instance
	OnlineCount(ctx context.Context, userID int64) (int64, error)

	// Joined reports whether the connection joined any room on this instance
	Joined(connectionID string) bool

	// LocalCount returns the user's sessions on this instance
	LocalCount(userID int64) int

	// CleanupInactive prunes presence entries of sessions that expired
	CleanupInactive(ctx context.Context) error
}
