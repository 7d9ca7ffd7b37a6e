package submission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/codepractice.net/internal/adapter/logging"
	"gitlab.com/codepractice.net/internal/core/ports/secondary"
	"gitlab.com/codepractice.net/internal/core/services/submission"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

type fakeRepo struct {
	tasks      map[int64]bool
	nextID     int64
	existsErr  error
	createErr  error
	committed  []int64
	rolledBack []int64
}

func (r *fakeRepo) TaskExists(_ context.Context, taskID int64) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	return r.tasks[taskID], nil
}

func (r *fakeRepo) CreatePending(_ context.Context, s *domain.Submission) (secondary.PendingSubmission, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	s.ID = r.nextID
	return &fakePending{repo: r, id: s.ID}, nil
}

type fakePending struct {
	repo *fakeRepo
	id   int64
}

func (p *fakePending) ID() int64 { return p.id }

func (p *fakePending) Commit() error {
	p.repo.committed = append(p.repo.committed, p.id)
	return nil
}

func (p *fakePending) Rollback() error {
	p.repo.rolledBack = append(p.repo.rolledBack, p.id)
	return nil
}

type fakeQueue struct {
	err   error
	tasks []domain.SubmissionTask
}

func (q *fakeQueue) Dispatch(_ context.Context, task domain.SubmissionTask) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func newService(repo *fakeRepo, queue *fakeQueue) *submission.SubmissionService {
	return submission.NewSubmissionService(repo, queue, logging.NewNopLogger())
}

func TestSubmit_DispatchesAndCommits(t *testing.T) {
	repo := &fakeRepo{tasks: map[int64]bool{5: true}, nextID: 1000}
	queue := &fakeQueue{}

	got, err := newService(repo, queue).Submit(context.Background(), 42, submission.SubmitRequest{
		TaskID: 5, Code: "print(1)",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1001), got.ID)
	assert.Equal(t, domain.LanguagePython, got.Language)
	assert.Equal(t, domain.SubmissionStatusPending, got.Status)
	assert.Equal(t, []int64{1001}, repo.committed)
	assert.Empty(t, repo.rolledBack)

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, domain.SubmissionTask{
		SubmissionID: 1001, TaskID: 5, UserID: 42, Code: "print(1)", Language: domain.LanguagePython,
	}, queue.tasks[0])
}

func TestSubmit_RollsBackWhenDispatchFails(t *testing.T) {
	repo := &fakeRepo{tasks: map[int64]bool{5: true}}
	cause := errors.New("broker down")
	queue := &fakeQueue{err: cause}

	_, err := newService(repo, queue).Submit(context.Background(), 42, submission.SubmitRequest{
		TaskID: 5, Code: "x", Language: "go",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrDispatchUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []int64{1}, repo.rolledBack)
	assert.Empty(t, repo.committed)
}

func TestSubmit_Validation(t *testing.T) {
	repo := &fakeRepo{tasks: map[int64]bool{5: true}}

	cases := []struct {
		name string
		req  submission.SubmitRequest
		want error
	}{
		{"missing task", submission.SubmitRequest{Code: "x"}, errs.ErrTaskRequired},
		{"blank code", submission.SubmitRequest{TaskID: 5, Code: "  \n"}, errs.ErrCodeRequired},
		{"bad language", submission.SubmitRequest{TaskID: 5, Code: "x", Language: "cobol"}, errs.ErrUnsupportedLanguage},
		{"unknown task", submission.SubmitRequest{TaskID: 9, Code: "x"}, errs.ErrTaskNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			queue := &fakeQueue{}
			_, err := newService(repo, queue).Submit(context.Background(), 42, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, queue.tasks)
		})
	}
	assert.Empty(t, repo.committed)
	assert.Empty(t, repo.rolledBack)
}

func TestSubmit_RepositoryErrorsAreInternal(t *testing.T) {
	queue := &fakeQueue{}

	_, err := newService(&fakeRepo{existsErr: errors.New("conn refused")}, queue).
		Submit(context.Background(), 42, submission.SubmitRequest{TaskID: 5, Code: "x"})
	assert.ErrorIs(t, err, errs.InternalError)

	_, err = newService(&fakeRepo{tasks: map[int64]bool{5: true}, createErr: errors.New("fk")}, queue).
		Submit(context.Background(), 42, submission.SubmitRequest{TaskID: 5, Code: "x"})
	assert.ErrorIs(t, err, errs.InternalError)
	assert.Empty(t, queue.tasks)
}
