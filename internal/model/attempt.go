package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptState enumerates the lifecycle states of an attempt.
type AttemptState string

const (
	AttemptStateOpen      AttemptState = "open"
	AttemptStateSubmitted AttemptState = "submitted"
	AttemptStateExpired   AttemptState = "expired"
)

// SubmitReason tells the finalizer why an attempt is being closed.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "manual"
	SubmitReasonTimeout SubmitReason = "timeout"
)

// ClosedState maps a submit reason onto the terminal attempt state.
func (r SubmitReason) ClosedState() AttemptState {
	if r == SubmitReasonTimeout {
		return AttemptStateExpired
	}
	return AttemptStateSubmitted
}

// Attempt is one timed instance of a student taking an exam.
type Attempt struct {
	ID          uuid.UUID     `json:"id"`
	StudentID   int           `json:"student_id"`
	ExamID      int64         `json:"exam_id"`
	StartedAt   time.Time     `json:"started_at"`
	Deadline    time.Time     `json:"deadline"`
	State       AttemptState  `json:"state"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	Paper       PaperSnapshot `json:"-"`
}

// IsOpen reports whether answers may still be recorded, ignoring the clock.
func (a *Attempt) IsOpen() bool {
	return a.State == AttemptStateOpen
}

// Answer is a student's selected option for one question of an attempt.
type Answer struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID int64     `json:"question_id"`
	OptionID   int64     `json:"option_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ResultStatus is the pass/fail outcome. It is empty when the exam defines
// no pass marks.
type ResultStatus string

const (
	ResultStatusPass ResultStatus = "pass"
	ResultStatusFail ResultStatus = "fail"
	ResultStatusNone ResultStatus = ""
)

// ResultItem is the scored outcome of a single question.
type ResultItem struct {
	QuestionID int64   `json:"question_id"`
	OptionID   *int64  `json:"option_id,omitempty"`
	Answered   bool    `json:"answered"`
	IsCorrect  bool    `json:"is_correct"`
	Awarded    float64 `json:"marks_awarded"`
}

// Result is the immutable scored outcome of a closed attempt.
type Result struct {
	AttemptID  uuid.UUID    `json:"attempt_id"`
	TotalScore float64      `json:"total_score"`
	Status     ResultStatus `json:"status,omitempty"`
	Correct    int          `json:"correct"`
	Wrong      int          `json:"wrong"`
	Unanswered int          `json:"unanswered"`
	Items      []ResultItem `json:"items"`
	CreatedAt  time.Time    `json:"created_at"`
}

// AnswerRequest is the payload for recording a single answer.
type AnswerRequest struct {
	QuestionID int64 `json:"question_id" binding:"required,gt=0"`
	OptionID   int64 `json:"option_id" binding:"required,gt=0"`
}
