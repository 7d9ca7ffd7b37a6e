package submission

import (
	"context"

	"gitlab.com/codepractice.net/internal/domain"
)

// SubmitRequest is the client supplied part of a new submission
type SubmitRequest struct {
	TaskID   int64
	Code     string
	Language string
}

// ISubmissionService accepts code submissions and hands them to the runner
type ISubmissionService interface {
	// Submit persists a pending submission, dispatches it and commits.
	// The row is rolled back when the dispatch fails.
	Submit(ctx context.Context, userID int64, req SubmitRequest) (*domain.Submission, error)
}
