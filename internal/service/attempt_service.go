package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/metrics"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/pragati/exam-engine/internal/repository"
	"github.com/pragati/exam-engine/internal/scoring"
	"github.com/rs/zerolog"
)

// AttemptStore persists attempts, answers and results.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a *model.Attempt) error
	GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	LatestAttempt(ctx context.Context, studentID int, examID int64) (*model.Attempt, error)
	ListAttemptsByStudent(ctx context.Context, studentID int) ([]model.Attempt, error)
	ListExpiredOpenAttempts(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	WithAttemptLock(ctx context.Context, id uuid.UUID, fn func(tx repository.AttemptTx) error) error
}

// EventPublisher receives attempt lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev repository.AttemptEvent) error
}

// AttemptService runs the attempt lifecycle: start, answer, submit, expire.
type AttemptService struct {
	catalog     *CatalogService
	store       AttemptStore
	deadline    *DeadlineEnforcer
	events      EventPublisher
	metrics     *metrics.Metrics
	allowRetake bool
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService. events and m may be nil.
func NewAttemptService(
	cfg *config.Config,
	catalog *CatalogService,
	store AttemptStore,
	deadline *DeadlineEnforcer,
	events EventPublisher,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		catalog:     catalog,
		store:       store,
		deadline:    deadline,
		events:      events,
		metrics:     m,
		allowRetake: cfg.AllowRetake,
		log:         log,
	}
}

// StartedAttempt is returned by StartAttempt.
type StartedAttempt struct {
	Attempt          *model.Attempt   `json:"attempt"`
	Resumed          bool             `json:"resumed"`
	ServerTime       time.Time        `json:"server_time"`
	RemainingSeconds float64          `json:"remaining_seconds"`
	Paper            *model.ExamPaper `json:"paper"`
}

// AttemptView is the state of an attempt as shown to its owner.
type AttemptView struct {
	Attempt          *model.Attempt   `json:"attempt"`
	ServerTime       time.Time        `json:"server_time"`
	RemainingSeconds float64          `json:"remaining_seconds"`
	Paper            *model.ExamPaper `json:"paper"`
	Answers          []model.Answer   `json:"answers"`
	Result           *model.Result    `json:"result,omitempty"`
}

// StartAttempt opens an attempt for the student, or returns the open one
// when it is still running. The deadline is fixed here and never moves.
func (s *AttemptService) StartAttempt(ctx context.Context, studentID int, examID int64) (*StartedAttempt, error) {
	// Two passes: a concurrent start may win the insert, in which case the
	// second pass resumes the attempt it created.
	for pass := 0; pass < 2; pass++ {
		latest, err := s.store.LatestAttempt(ctx, studentID, examID)
		switch {
		case err == nil:
			if latest.IsOpen() {
				if !s.deadline.IsExpired(latest) {
					s.metrics.AttemptStarted(true)
					return s.started(latest, true), nil
				}
				if _, _, err := s.finalize(ctx, latest.ID, nil, model.SubmitReasonTimeout); err != nil && !errors.Is(err, ErrAttemptNotExpired) {
					return nil, fmt.Errorf("expire stale attempt: %w", err)
				}
			}
			if !s.allowRetake {
				return nil, ErrAttemptAlreadySubmitted
			}
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("find latest attempt: %w", err)
		}

		snap, err := s.catalog.Snapshot(ctx, examID)
		if err != nil {
			return nil, err
		}

		now := s.deadline.Now()
		attempt := &model.Attempt{
			ID:        uuid.New(),
			StudentID: studentID,
			ExamID:    examID,
			StartedAt: now,
			Deadline:  s.deadline.DeadlineFor(&snap.Exam, now),
			State:     model.AttemptStateOpen,
			Paper:     *snap,
		}

		if err := s.store.CreateAttempt(ctx, attempt); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				s.log.Debug().Int("student_id", studentID).Int64("exam_id", examID).Msg("Concurrent start detected, resuming")
				continue
			}
			return nil, fmt.Errorf("create attempt: %w", err)
		}

		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Int("student_id", studentID).
			Int64("exam_id", examID).
			Time("deadline", attempt.Deadline).
			Msg("Attempt started")
		s.metrics.AttemptStarted(false)
		s.publish(ctx, repository.AttemptEventStarted, attempt, nil)
		return s.started(attempt, false), nil
	}
	return nil, fmt.Errorf("start attempt: %w", repository.ErrConflict)
}

func (s *AttemptService) started(a *model.Attempt, resumed bool) *StartedAttempt {
	return &StartedAttempt{
		Attempt:          a,
		Resumed:          resumed,
		ServerTime:       s.deadline.Now(),
		RemainingSeconds: s.deadline.Remaining(a).Seconds(),
		Paper:            a.Paper.ForStudent(),
	}
}

// RecordAnswer stores the student's selection for one question, replacing
// any earlier one. An answer arriving at or after the deadline is rejected
// and the attempt is closed as expired in the same critical section.
func (s *AttemptService) RecordAnswer(ctx context.Context, studentID int, attemptID uuid.UUID, questionID, optionID int64) (*model.Answer, error) {
	var (
		saved   model.Answer
		closed  *model.Attempt
		outcome *model.Result
	)

	err := s.store.WithAttemptLock(ctx, attemptID, func(tx repository.AttemptTx) error {
		a := tx.Attempt()
		if a.StudentID != studentID {
			return ErrUnauthorized
		}
		if !a.IsOpen() {
			return ErrAttemptClosed
		}
		if s.deadline.IsExpired(a) {
			res, err := s.closeLocked(ctx, tx, model.SubmitReasonTimeout)
			if err != nil {
				return err
			}
			snapshot := *tx.Attempt()
			closed, outcome = &snapshot, res
			return nil
		}

		q, ok := a.Paper.Question(questionID)
		if !ok {
			return ErrInvalidQuestion
		}
		if _, ok := q.Option(optionID); !ok {
			return ErrInvalidOption
		}

		saved = model.Answer{
			AttemptID:  a.ID,
			QuestionID: questionID,
			OptionID:   optionID,
			UpdatedAt:  s.deadline.Now(),
		}
		return tx.UpsertAnswer(ctx, &saved)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if closed != nil {
		s.afterClose(ctx, closed, outcome)
		return nil, ErrAttemptClosed
	}

	s.metrics.AnswerRecorded()
	return &saved, nil
}

// SubmitAttempt closes the attempt on the student's request and returns
// its result. Submitting an already closed attempt returns the stored
// result without scoring again.
func (s *AttemptService) SubmitAttempt(ctx context.Context, studentID int, attemptID uuid.UUID) (*model.Result, error) {
	res, _, err := s.finalize(ctx, attemptID, ownedBy(studentID), model.SubmitReasonManual)
	return res, err
}

// ExpireAttempt closes an attempt whose deadline has passed. It fails with
// ErrAttemptNotExpired while time remains.
func (s *AttemptService) ExpireAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	res, _, err := s.finalize(ctx, attemptID, nil, model.SubmitReasonTimeout)
	return res, err
}

func ownedBy(studentID int) func(*model.Attempt) error {
	return func(a *model.Attempt) error {
		if a.StudentID != studentID {
			return ErrUnauthorized
		}
		return nil
	}
}

// finalize closes the attempt exactly once. The boolean reports whether
// this call performed the transition.
func (s *AttemptService) finalize(ctx context.Context, attemptID uuid.UUID, check func(*model.Attempt) error, reason model.SubmitReason) (*model.Result, bool, error) {
	var (
		result *model.Result
		closed *model.Attempt
	)

	err := s.store.WithAttemptLock(ctx, attemptID, func(tx repository.AttemptTx) error {
		a := tx.Attempt()
		if check != nil {
			if err := check(a); err != nil {
				return err
			}
		}

		if !a.IsOpen() {
			res, err := tx.GetResult(ctx)
			if err != nil {
				return fmt.Errorf("get stored result: %w", err)
			}
			result = res
			return nil
		}

		expired := s.deadline.IsExpired(a)
		if reason == model.SubmitReasonTimeout && !expired {
			return ErrAttemptNotExpired
		}
		if expired {
			reason = model.SubmitReasonTimeout
		}

		res, err := s.closeLocked(ctx, tx, reason)
		if err != nil {
			return err
		}
		snapshot := *tx.Attempt()
		result, closed = res, &snapshot
		return nil
	})
	if err != nil {
		return nil, false, storeErr(err)
	}

	if closed != nil {
		s.afterClose(ctx, closed, result)
	}
	return result, closed != nil, nil
}

// closeLocked scores the locked attempt against its own paper snapshot and
// stores the result. The caller holds the attempt lock.
func (s *AttemptService) closeLocked(ctx context.Context, tx repository.AttemptTx, reason model.SubmitReason) (*model.Result, error) {
	a := tx.Attempt()
	answers, err := tx.ListAnswers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	report := scoring.Score(&a.Paper.Exam, a.Paper.Questions, answers)
	now := s.deadline.Now()
	result := &model.Result{
		AttemptID:  a.ID,
		TotalScore: report.Total,
		Status:     report.Status,
		Correct:    report.Correct,
		Wrong:      report.Wrong,
		Unanswered: report.Unanswered,
		Items:      report.Items,
		CreatedAt:  now,
	}

	if err := tx.Close(ctx, reason.ClosedState(), now, result); err != nil {
		return nil, fmt.Errorf("close attempt: %w", err)
	}
	return result, nil
}

func (s *AttemptService) afterClose(ctx context.Context, a *model.Attempt, res *model.Result) {
	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Int("student_id", a.StudentID).
		Int64("exam_id", a.ExamID).
		Str("state", string(a.State)).
		Float64("score", res.TotalScore).
		Msg("Attempt finalized")
	s.metrics.AttemptClosed(a.State, res.TotalScore)
	score := res.TotalScore
	s.publish(ctx, repository.AttemptEventClosed, a, &score)
}

func (s *AttemptService) publish(ctx context.Context, typ string, a *model.Attempt, score *float64) {
	if s.events == nil {
		return
	}
	ev := repository.AttemptEvent{
		Type:       typ,
		AttemptID:  a.ID,
		StudentID:  a.StudentID,
		ExamID:     a.ExamID,
		State:      a.State,
		TotalScore: score,
		At:         s.deadline.Now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to publish attempt event")
	}
}

// GetAttemptState returns the attempt with its paper, recorded answers and
// remaining time. An open attempt past its deadline is closed first.
func (s *AttemptService) GetAttemptState(ctx context.Context, studentID int, attemptID uuid.UUID) (*AttemptView, error) {
	var (
		view   AttemptView
		closed *model.Attempt
	)

	err := s.store.WithAttemptLock(ctx, attemptID, func(tx repository.AttemptTx) error {
		a := tx.Attempt()
		if a.StudentID != studentID {
			return ErrUnauthorized
		}

		if a.IsOpen() && s.deadline.IsExpired(a) {
			res, err := s.closeLocked(ctx, tx, model.SubmitReasonTimeout)
			if err != nil {
				return err
			}
			snapshot := *tx.Attempt()
			closed, view.Result = &snapshot, res
		} else if !a.IsOpen() {
			res, err := tx.GetResult(ctx)
			if err != nil {
				return fmt.Errorf("get stored result: %w", err)
			}
			view.Result = res
		}

		answers, err := tx.ListAnswers(ctx)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}
		snapshot := *tx.Attempt()
		view.Attempt = &snapshot
		view.Answers = answers
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if closed != nil {
		s.afterClose(ctx, closed, view.Result)
	}

	view.ServerTime = s.deadline.Now()
	view.RemainingSeconds = s.deadline.Remaining(view.Attempt).Seconds()
	view.Paper = view.Attempt.Paper.ForStudent()
	return &view, nil
}

// ListAttempts returns the student's attempts, newest first.
func (s *AttemptService) ListAttempts(ctx context.Context, studentID int) ([]model.Attempt, error) {
	attempts, err := s.store.ListAttemptsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, nil
}

// GetResult returns the stored result of a closed attempt. An open attempt
// past its deadline is closed first; one still running yields ErrAttemptOpen.
func (s *AttemptService) GetResult(ctx context.Context, studentID int, attemptID uuid.UUID) (*model.Result, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, storeErr(err)
	}
	if a.StudentID != studentID {
		return nil, ErrUnauthorized
	}
	if a.IsOpen() && !s.deadline.IsExpired(a) {
		return nil, ErrAttemptOpen
	}

	res, _, err := s.finalize(ctx, attemptID, ownedBy(studentID), model.SubmitReasonTimeout)
	if errors.Is(err, ErrAttemptNotExpired) {
		return nil, ErrAttemptOpen
	}
	return res, err
}

// SweepExpired closes up to limit open attempts whose deadline passed and
// returns how many it closed.
func (s *AttemptService) SweepExpired(ctx context.Context, limit int) (int, error) {
	ids, err := s.store.ListExpiredOpenAttempts(ctx, s.deadline.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired attempts: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		_, closedNow, err := s.finalize(ctx, id, nil, model.SubmitReasonTimeout)
		if err != nil {
			if errors.Is(err, ErrAttemptNotExpired) || errors.Is(err, ErrNotFound) {
				continue
			}
			s.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Failed to expire attempt")
			continue
		}
		if closedNow {
			expired++
		}
	}
	return expired, nil
}

func storeErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
