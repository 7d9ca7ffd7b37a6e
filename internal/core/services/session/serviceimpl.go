package session

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/ports/secondary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/push/registry"
	"gitlab.com/codepractice.net/internal/static/errs"
)

var _ ISessionService = &SessionService{}

// SessionService keeps the in-memory registry authoritative for routing and
// mirrors it into the presence repository on a best-effort basis
type SessionService struct {
	registry     *registry.Registry
	presenceRepo secondary.SessionPresenceRepository
	logger       primary.Logger
}

// NewSessionService creates a new session service
func NewSessionService(reg *registry.Registry, presenceRepo secondary.SessionPresenceRepository, logger primary.Logger) *SessionService {
	return &SessionService{
		registry:     reg,
		presenceRepo: presenceRepo,
		logger:       logger,
	}
}

// Join registers the connection under userID
func (s *SessionService) Join(ctx context.Context, conn primary.PushConn, userID int64) error {
	if userID <= 0 {
		return errs.ErrUserIDRequired
	}

	previous, hadPrevious := s.registry.UserOf(conn.ID())
	if !s.registry.Register(conn, userID) {
		s.logger.Debug("Connection already joined", "connectionId", conn.ID(), "userId", userID)
		return nil
	}
	if hadPrevious {
		s.removePresence(ctx, conn.ID(), previous)
	}

	session := &domain.Session{
		ConnectionID: conn.ID(),
		UserID:       userID,
		Transport:    conn.Transport(),
		ConnectedAt:  time.Now(),
	}
	if err := s.presenceRepo.SaveSession(ctx, session); err != nil {
		s.logger.Warn("Failed to record session presence", "connectionId", conn.ID(), "userId", userID, "error", err)
	}

	s.logger.Info("Client joined submission room",
		"connectionId", conn.ID(),
		"userId", userID,
		"transport", conn.Transport())
	return nil
}

// Leave unregisters the pair; leaving a room that was never joined is a no-op
func (s *SessionService) Leave(ctx context.Context, connectionID string, userID int64) error {
	if userID <= 0 {
		return errs.ErrUserIDRequired
	}
	if !s.registry.Unregister(connectionID, userID) {
		s.logger.Debug("Leave for unknown session ignored", "connectionId", connectionID, "userId", userID)
		return nil
	}
	s.removePresence(ctx, connectionID, userID)
	s.logger.Info("Client left submission room", "connectionId", connectionID, "userId", userID)
	return nil
}

// Disconnect is the implicit leave of a closed connection
func (s *SessionService) Disconnect(ctx context.Context, connectionID string) {
	userID, ok := s.registry.Remove(connectionID)
	if !ok {
		return
	}
	s.removePresence(ctx, connectionID, userID)
	s.logger.Info("Client disconnected", "connectionId", connectionID, "userId", userID)
}

// Touch refreshes presence for a joined connection, recording it again if
// the presence entry already expired
func (s *SessionService) Touch(ctx context.Context, connectionID string) {
	conn, userID, ok := s.registry.Get(connectionID)
	if !ok {
		return
	}
	err := s.presenceRepo.RefreshSession(ctx, connectionID)
	if err == nil {
		return
	}
	s.logger.Debug("Session presence lost, recording again", "connectionId", connectionID, "error", err)

	session := &domain.Session{
		ConnectionID: connectionID,
		UserID:       userID,
		Transport:    conn.Transport(),
		ConnectedAt:  time.Now(),
	}
	if err := s.presenceRepo.SaveSession(ctx, session); err != nil {
		s.logger.Warn("Failed to record session presence", "connectionId", connectionID, "error", err)
	}
}

// RefreshPresence touches every joined connection so clients that never
// send ping keep their presence while the socket stays open
func (s *SessionService) RefreshPresence(ctx context.Context) error {
	for _, connectionID := range s.registry.ConnectionIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Touch(ctx, connectionID)
	}
	return nil
}

// OnlineCount returns the cluster-wide number of sessions of a user
func (s *SessionService) OnlineCount(ctx context.Context, userID int64) (int64, error) {
	n, err := s.presenceRepo.CountUserSessions(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to count user sessions", "userId", userID, "error", err)
		return 0, fmt.Errorf("failed to count user sessions: %w", err)
	}
	return n, nil
}

func (s *SessionService) Joined(connectionID string) bool {
	_, ok := s.registry.UserOf(connectionID)
	return ok
}

func (s *SessionService) LocalCount(userID int64) int {
	return len(s.registry.ConnectionsFor(userID))
}

// CleanupInactive removes expired sessions from the presence index
func (s *SessionService) CleanupInactive(ctx context.Context) error {
	removed, err := s.presenceRepo.RemoveInactiveSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to remove inactive sessions", "error", err)
		return fmt.Errorf("failed to clean up inactive sessions: %w", err)
	}
	if removed > 0 {
		s.logger.Info("Removed inactive sessions", "count", removed)
	}
	return nil
}

func (s *SessionService) removePresence(ctx context.Context, connectionID string, userID int64) {
	if err := s.presenceRepo.RemoveSession(ctx, connectionID, userID); err != nil {
		s.logger.Warn("Failed to remove session presence", "connectionId", connectionID, "userId", userID, "error", err)
	}
}
