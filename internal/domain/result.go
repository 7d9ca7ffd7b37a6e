package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SubmissionResult is a verdict received from the results queue.
// Payload is the original message body and is pushed to clients verbatim.
type SubmissionResult struct {
	SubmissionID int64
	UserID       int64
	Status       string
	Payload      json.RawMessage
}

type resultEnvelope struct {
	SubmissionID FlexID `json:"submission_id"`
	UserID       FlexID `json:"user_id"`
	Status       string `json:"status"`
}

// ParseSubmissionResult decodes a results-queue body. Any body that is not
// a JSON object or lacks a positive submission_id or user_id is rejected.
func ParseSubmissionResult(body []byte) (SubmissionResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return SubmissionResult{}, fmt.Errorf("result body is not a JSON object")
	}

	var env resultEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return SubmissionResult{}, fmt.Errorf("failed to decode result: %w", err)
	}
	if env.UserID <= 0 {
		return SubmissionResult{}, errField("user_id")
	}
	if env.SubmissionID <= 0 {
		return SubmissionResult{}, errField("submission_id")
	}

	payload := make(json.RawMessage, len(trimmed))
	copy(payload, trimmed)

	return SubmissionResult{
		SubmissionID: env.SubmissionID.Int64(),
		UserID:       env.UserID.Int64(),
		Status:       env.Status,
		Payload:      payload,
	}, nil
}
