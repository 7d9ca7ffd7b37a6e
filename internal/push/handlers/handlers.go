// Package handlers implements the client to server events of the push channel.
package handlers

import (
	"context"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/push"
)

// NewEventHandlers returns the handler for every client event, keyed by event name
func NewEventHandlers(sessionService session.ISessionService, logger primary.Logger) map[string]primary.EventHandler {
	return map[string]primary.EventHandler{
		push.EventJoin:  &JoinHandler{SessionService: sessionService, Logger: logger},
		push.EventLeave: &LeaveHandler{SessionService: sessionService, Logger: logger},
		push.EventPing:  &PingHandler{SessionService: sessionService},
	}
}

// sendError reports a rejected event to the client. Only a failed write is
// returned, which ends the connection.
func sendError(ctx context.Context, conn primary.PushConn, code int, message string) error {
	return conn.Send(ctx, push.EventError, push.ErrorPayload(code, message))
}
