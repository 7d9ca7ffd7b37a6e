package domain

import (
	"fmt"
	"time"
)

// Transport names the push channel a session arrived on
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportTCP       Transport = "tcp"
)

// Session is a live connection's registered interest in one user's results
type Session struct {
	ConnectionID string    `json:"connection_id"`
	UserID       int64     `json:"user_id"`
	Transport    Transport `json:"transport"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// FieldError reports a missing or invalid required field
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("missing or invalid field %q", e.Field)
}

func errField(name string) error {
	return &FieldError{Field: name}
}
