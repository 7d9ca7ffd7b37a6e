package submission

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/ports/secondary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

var _ ISubmissionService = (*SubmissionService)(nil)

// SubmissionService implements the ISubmissionService interface
type SubmissionService struct {
	repo   secondary.SubmissionRepository
	queue  secondary.TaskQueue
	logger primary.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	repo secondary.SubmissionRepository,
	queue secondary.TaskQueue,
	logger primary.Logger,
) *SubmissionService {
	return &SubmissionService{
		repo:   repo,
		queue:  queue,
		logger: logger,
	}
}

// Submit validates the request, mints the submission id inside an open
// transaction and commits only once the task is durably queued
func (s *SubmissionService) Submit(ctx context.Context, userID int64, req SubmitRequest) (*domain.Submission, error) {
	if userID <= 0 {
		return nil, errs.ErrInvalidToken
	}
	if req.TaskID <= 0 {
		return nil, errs.ErrTaskRequired
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, errs.ErrCodeRequired
	}
	language, ok := domain.ParseLanguage(req.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnsupportedLanguage, req.Language)
	}

	exists, err := s.repo.TaskExists(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.InternalError, err)
	}
	if !exists {
		return nil, errs.ErrTaskNotFound
	}

	submission := domain.NewPendingSubmission(userID, req.TaskID, req.Code, language)
	pending, err := s.repo.CreatePending(ctx, submission)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.InternalError, err)
	}

	if err := s.queue.Dispatch(ctx, submission.Task()); err != nil {
		s.logger.Error("Failed to dispatch submission, rolling back",
			"submissionId", submission.ID,
			"userId", userID,
			"error", err)
		if rbErr := pending.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed", "submissionId", submission.ID, "error", rbErr)
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrDispatchUnavailable, err)
	}

	if err := pending.Commit(); err != nil {
		// the task is already queued; the runner will report a result for an
		// id that was never stored
		s.logger.Error("Commit failed after dispatch", "submissionId", submission.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", errs.InternalError, err)
	}

	s.logger.Info("Submission accepted",
		"submissionId", submission.ID,
		"taskId", submission.TaskID,
		"userId", userID,
		"language", language)

	return submission, nil
}
