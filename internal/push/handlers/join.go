package handlers

import (
	"context"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/push"
)

// Implementation of push event handlers
// Each handler deals with one client to server event

var _ primary.EventHandler = (*JoinHandler)(nil)

// JoinHandler handles join_submission_room events
type JoinHandler struct {
	SessionService session.ISessionService
	Logger         primary.Logger
}

// HandleEvent implements the EventHandler interface
func (h *JoinHandler) HandleEvent(ctx context.Context, conn primary.PushConn, payload []byte) error {
	userID, err := push.ParseUserID(payload)
	if err != nil {
		h.Logger.Warn("Invalid join payload", "connectionId", conn.ID(), "error", err)
		return sendError(ctx, conn, push.CodeInvalidPayload, "user_id is required")
	}

	if err := h.SessionService.Join(ctx, conn, userID); err != nil {
		h.Logger.Error("Failed to join submission room", "connectionId", conn.ID(), "userId", userID, "error", err)
		return sendError(ctx, conn, push.CodeJoinFailed, "failed to join submission room")
	}
	return nil
}
