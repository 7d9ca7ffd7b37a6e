package submissions

import "gitlab.com/codepractice.net/internal/domain"

// CreateSubmissionRequest is the body of POST /api/submissions.
// TaskID accepts a number or a numeric string.
type CreateSubmissionRequest struct {
	TaskID   domain.FlexID `json:"task_id"`
	Code     string        `json:"code"`
	Language string        `json:"language"`
}

type CreateSubmissionResponse struct {
	Msg          string `json:"msg"`
	SubmissionID int64  `json:"submission_id"`
	UserID       int64  `json:"user_id"`
}
