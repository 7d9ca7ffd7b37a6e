package handlers

import (
	"context"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/push"
)

var _ primary.EventHandler = (*PingHandler)(nil)

// PingHandler answers client keep-alives and refreshes session presence
type PingHandler struct {
	SessionService session.ISessionService
}

func (h *PingHandler) HandleEvent(ctx context.Context, conn primary.PushConn, _ []byte) error {
	h.SessionService.Touch(ctx, conn.ID())
	return conn.Send(ctx, push.EventPong, nil)
}
