package errs

import (
	"errors"
	"fmt"
)

// Submission acceptance
var (
	ErrTaskRequired        = errors.New("task_id is required")
	ErrCodeRequired        = errors.New("code is required")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrTaskNotFound        = errors.New("task not found")
	ErrDispatchUnavailable = errors.New("code execution service is temporarily unavailable")
	InternalError          = errors.New("internal error")
)

// Broker
var (
	ErrInvalidTask          = errors.New("invalid submission task")
	ErrPublishNotConfirmed  = errors.New("broker did not confirm publish")
	ErrRetryLimit           = errors.New("broker connection retry limit reached")
	ErrReconnectLimit       = errors.New("result listener reconnect limit reached")
	ErrMalformedResult      = errors.New("malformed submission result")
	ErrDeliveryChannelClose = errors.New("delivery channel closed")
	ErrHandlerPanic         = errors.New("result handler panicked")
)

// Tokens
var (
	ErrMissingToken = errors.New("authorization header missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrInvalidToken)
)

// Push channel
var (
	ErrUserIDRequired = errors.New("user_id is required")
	ErrConnClosed     = errors.New("connection closed")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrSessionExpired = errors.New("session not found or expired")
)
