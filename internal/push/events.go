// Package push routes submission verdicts to the live connections of the
// submitting user.
package push

import (
	"encoding/json"
	"fmt"

	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

// Event names shared by every push transport
const (
	EventJoin      = "join_submission_room"
	EventLeave     = "leave_submission_room"
	EventPing      = "ping"
	EventPong      = "pong"
	EventResult    = "submission_result"
	EventError     = "error"
	EventConnected = "connected"
)

// Error codes carried by EventError
const (
	CodeInvalidPayload = 1001
	CodeJoinFailed     = 1002
	CodeUnknownEvent   = 1003
	CodeLeaveFailed    = 1004
	CodeFrameTooLarge  = 1005
)

type (
	// RoomData is the payload of join and leave events
	RoomData struct {
		UserID domain.FlexID `json:"user_id"`
	}

	// ErrorData is the payload of error events
	ErrorData struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	// ConnectedData is sent once a connection is accepted
	ConnectedData struct {
		ConnectionID string `json:"connection_id"`
	}
)

// ParseUserID extracts a positive user id from a join or leave payload.
// The id may be a JSON number or a numeric string.
func ParseUserID(payload []byte) (int64, error) {
	var data RoomData
	if err := json.Unmarshal(payload, &data); err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrUserIDRequired, err)
	}
	if data.UserID <= 0 {
		return 0, errs.ErrUserIDRequired
	}
	return data.UserID.Int64(), nil
}

// ErrorPayload encodes an error event payload
func ErrorPayload(code int, message string) []byte {
	b, _ := json.Marshal(ErrorData{Code: code, Message: message})
	return b
}

// ConnectedPayload encodes a connected event payload
func ConnectedPayload(connectionID string) []byte {
	b, _ := json.Marshal(ConnectedData{ConnectionID: connectionID})
	return b
}
