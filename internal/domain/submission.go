package domain

import (
	"time"
)

// SubmissionStatus is the lifecycle state of a stored submission
type SubmissionStatus string

const (
	SubmissionStatusPending SubmissionStatus = "PENDING"
)

// Submission represents an accepted code submission record
type Submission struct {
	ID         int64            `db:"submission_id" json:"submission_id"`
	TaskID     int64            `db:"task_id" json:"task_id"`
	UserID     int64            `db:"user_id" json:"user_id"`
	Code       string           `db:"code" json:"code"`
	Language   Language         `db:"language" json:"language"`
	Status     SubmissionStatus `db:"status" json:"status"`
	IsComplete bool             `db:"is_complete" json:"is_complete"`
	CreatedAt  time.Time        `db:"date" json:"date"`
}

type SubmissionTable struct {
	ID         string
	TaskID     string
	UserID     string
	Code       string
	Language   string
	Status     string
	IsComplete string
	CreatedAt  string
}

func GetSubmissionTable() SubmissionTable {
	return SubmissionTable{
		ID:         "submission_id",
		TaskID:     "task_id",
		UserID:     "user_id",
		Code:       "code",
		Language:   "language",
		Status:     "status",
		IsComplete: "is_complete",
		CreatedAt:  "date",
	}
}

func (SubmissionTable) TableName() string {
	return "submissions"
}

// NewPendingSubmission creates a submission that has not been dispatched yet
func NewPendingSubmission(userID, taskID int64, code string, language Language) *Submission {
	return &Submission{
		TaskID:     taskID,
		UserID:     userID,
		Code:       code,
		Language:   language,
		Status:     SubmissionStatusPending,
		IsComplete: false,
		CreatedAt:  time.Now(),
	}
}

// Task builds the work-queue message for a submission whose id was minted.
func (s *Submission) Task() SubmissionTask {
	return SubmissionTask{
		SubmissionID: s.ID,
		TaskID:       s.TaskID,
		UserID:       s.UserID,
		Code:         s.Code,
		Language:     s.Language,
	}
}

// SubmissionTask is the message published to the work queue.
// It is immutable once published.
type SubmissionTask struct {
	SubmissionID int64    `json:"submission_id"`
	TaskID       int64    `json:"task_id"`
	UserID       int64    `json:"user_id"`
	Code         string   `json:"code"`
	Language     Language `json:"language"`
}

// Validate reports whether every field is present
func (t SubmissionTask) Validate() error {
	switch {
	case t.SubmissionID <= 0:
		return errField("submission_id")
	case t.TaskID <= 0:
		return errField("task_id")
	case t.UserID <= 0:
		return errField("user_id")
	case t.Code == "":
		return errField("code")
	case !t.Language.Valid():
		return errField("language")
	}
	return nil
}
