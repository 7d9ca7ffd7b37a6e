package submissionrepository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/codepractice.net/internal/adapter/logging"
	"gitlab.com/codepractice.net/internal/adapter/postgres/submissionrepository"
	"gitlab.com/codepractice.net/internal/domain"
)

func setup(t *testing.T) (sqlmock.Sqlmock, *submissionrepository.SubmissionRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return mock, submissionrepository.New(sqlx.NewDb(db, "postgres"), logging.NewNopLogger(), "public")
}

var insertQuery = regexp.QuoteMeta(`INSERT INTO public.submissions (user_id, task_id, code, language, status, is_complete, date)`)

func TestTaskExists(t *testing.T) {
	mock, repo := setup(t)
	query := regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM public.tasks WHERE task_id = $1)`)

	mock.ExpectQuery(query).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(query).WithArgs(int64(6)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.TaskExists(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TaskExists(context.Background(), 6)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreatePending_Commit(t *testing.T) {
	mock, repo := setup(t)
	submission := domain.NewPendingSubmission(42, 5, "print(1)", domain.LanguagePython)

	mock.ExpectBegin()
	mock.ExpectQuery(insertQuery).
		WithArgs(int64(42), int64(5), "print(1)", "python", "PENDING", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"submission_id"}).AddRow(int64(1001)))
	mock.ExpectCommit()

	pending, err := repo.CreatePending(context.Background(), submission)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), pending.ID())
	assert.Equal(t, int64(1001), submission.ID)
	require.NoError(t, pending.Commit())
}

func TestCreatePending_Rollback(t *testing.T) {
	mock, repo := setup(t)
	submission := domain.NewPendingSubmission(42, 5, "print(1)", domain.LanguagePython)

	mock.ExpectBegin()
	mock.ExpectQuery(insertQuery).WillReturnRows(sqlmock.NewRows([]string{"submission_id"}).AddRow(int64(7)))
	mock.ExpectRollback()

	pending, err := repo.CreatePending(context.Background(), submission)
	require.NoError(t, err)
	require.NoError(t, pending.Rollback())
}

func TestCreatePending_InsertFails(t *testing.T) {
	mock, repo := setup(t)
	submission := &domain.Submission{UserID: 42, TaskID: 5, Code: "x", Language: domain.LanguageGo, CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("violates foreign key constraint"))
	mock.ExpectRollback()

	_, err := repo.CreatePending(context.Background(), submission)
	assert.ErrorContains(t, err, "failed to insert submission")
}
