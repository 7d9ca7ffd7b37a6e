package secondary

import (
	"context"

	"gitlab.com/codepractice.net/internal/domain"
)

// PendingSubmission is an inserted but uncommitted submission row.
// Exactly one of Commit or Rollback must be called.
type PendingSubmission interface {
	ID() int64
	Commit() error
	Rollback() error
}

type SubmissionRepository interface {
	// TaskExists reports whether the task catalog knows the task
	TaskExists(ctx context.Context, taskID int64) (bool, error)

	// CreatePending inserts the submission inside an open transaction and
	// sets submission.ID to the minted identifier
	CreatePending(ctx context.Context, submission *domain.Submission) (PendingSubmission, error)
}
