package handlers

import (
	"context"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/push"
)

var _ primary.EventHandler = (*LeaveHandler)(nil)

// LeaveHandler handles leave_submission_room events
type LeaveHandler struct {
	SessionService session.ISessionService
	Logger         primary.Logger
}

func (h *LeaveHandler) HandleEvent(ctx context.Context, conn primary.PushConn, payload []byte) error {
	userID, err := push.ParseUserID(payload)
	if err != nil {
		h.Logger.Warn("Invalid leave payload", "connectionId", conn.ID(), "error", err)
		return sendError(ctx, conn, push.CodeInvalidPayload, "user_id is required")
	}

	if err := h.SessionService.Leave(ctx, conn.ID(), userID); err != nil {
		h.Logger.Error("Failed to leave submission room", "connectionId", conn.ID(), "userId", userID, "error", err)
		return sendError(ctx, conn, push.CodeLeaveFailed, "failed to leave submission room")
	}
	return nil
}
