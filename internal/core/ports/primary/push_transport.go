package primary

import (
	"context"

	"gitlab.com/codepractice.net/internal/domain"
)

// PushConn is one live client connection on any push transport.
// Send must be safe for concurrent use.
type PushConn interface {
	ID() string
	Transport() domain.Transport
	Send(ctx context.Context, event string, payload []byte) error
	Close() error
}

// EventHandler handles one client to server event type
type EventHandler interface {
	HandleEvent(ctx context.Context, conn PushConn, payload []byte) error
}
