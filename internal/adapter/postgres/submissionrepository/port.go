// Package submissionrepository stores accepted submissions in PostgreSQL.
package submissionrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/ports/secondary"
	"gitlab.com/codepractice.net/internal/domain"
)

var _ secondary.SubmissionRepository = (*SubmissionRepository)(nil)

// SubmissionRepository implements the SubmissionRepository interface with PostgreSQL
type SubmissionRepository struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

// New creates a new PostgreSQL submission repository
func New(db *sqlx.DB, logger primary.Logger, schema string) *SubmissionRepository {
	if schema == "" {
		schema = "public"
	}
	return &SubmissionRepository{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

// TaskExists reports whether the task catalog contains taskID
func (r *SubmissionRepository) TaskExists(ctx context.Context, taskID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s.tasks WHERE task_id = $1)`, r.schema)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, taskID); err != nil {
		r.logger.Error("Failed to look up task", "taskId", taskID, "error", err)
		return false, fmt.Errorf("failed to look up task: %w", err)
	}
	return exists, nil
}

// CreatePending inserts the submission in a new transaction and leaves the
// transaction open so the caller can commit only after dispatch succeeded
func (r *SubmissionRepository) CreatePending(ctx context.Context, submission *domain.Submission) (secondary.PendingSubmission, error) {
	tbl := domain.GetSubmissionTable()
	query := fmt.Sprintf(`
		INSERT INTO %s.%s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`,
		r.schema, tbl.TableName(),
		tbl.UserID, tbl.TaskID, tbl.Code, tbl.Language, tbl.Status, tbl.IsComplete, tbl.CreatedAt,
		tbl.ID,
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = tx.QueryRowxContext(ctx, query,
		submission.UserID,
		submission.TaskID,
		submission.Code,
		submission.Language,
		submission.Status,
		submission.IsComplete,
		submission.CreatedAt,
	).Scan(&submission.ID)
	if err != nil {
		_ = tx.Rollback()
		r.logger.Error("Failed to insert submission", "taskId", submission.TaskID, "userId", submission.UserID, "error", err)
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}

	return &pendingSubmission{tx: tx, id: submission.ID}, nil
}

type pendingSubmission struct {
	tx *sqlx.Tx
	id int64
}

func (p *pendingSubmission) ID() int64 {
	return p.id
}

func (p *pendingSubmission) Commit() error {
	if err := p.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission %d: %w", p.id, err)
	}
	return nil
}

func (p *pendingSubmission) Rollback() error {
	if err := p.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back submission %d: %w", p.id, err)
	}
	return nil
}
