package secondary

import (
	"context"

	"gitlab.com/codepractice.net/internal/domain"
)

// TaskQueue hands submissions to the execution backend
type TaskQueue interface {
	// Dispatch returns only after the task is durably queued
	Dispatch(ctx context.Context, task domain.SubmissionTask) error
}
