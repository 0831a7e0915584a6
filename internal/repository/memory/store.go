// Package memory is an in-process implementation of the catalog and attempt
// stores, used with STORAGE_DRIVER=memory and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/pragati/exam-engine/internal/repository"
)

type attemptRow struct {
	lock    sync.Mutex
	attempt model.Attempt
	answers map[int64]model.Answer
	result  *model.Result
}

// Store keeps exams and attempts in maps guarded by a single RWMutex. Each
// attempt additionally carries its own mutex so WithAttemptLock serializes
// writers per attempt, like a row lock.
type Store struct {
	mutex     sync.RWMutex
	exams     map[int64]*model.Exam
	questions map[int64][]model.Question
	attempts  map[uuid.UUID]*attemptRow
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		exams:     make(map[int64]*model.Exam),
		questions: make(map[int64][]model.Question),
		attempts:  make(map[uuid.UUID]*attemptRow),
	}
}

// PutExam inserts or replaces an exam together with its questions.
func (s *Store) PutExam(exam model.Exam, questions []model.Question) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now()
	}
	qs := cloneQuestions(questions)
	for i := range qs {
		qs[i].ExamID = exam.ID
		for j := range qs[i].Options {
			qs[i].Options[j].QuestionID = qs[i].ID
		}
		sort.SliceStable(qs[i].Options, func(a, b int) bool {
			oa, ob := qs[i].Options[a], qs[i].Options[b]
			if oa.Position != ob.Position {
				return oa.Position < ob.Position
			}
			return oa.ID < ob.ID
		})
	}
	sort.SliceStable(qs, func(a, b int) bool {
		if qs[a].Position != qs[b].Position {
			return qs[a].Position < qs[b].Position
		}
		return qs[a].ID < qs[b].ID
	})

	s.exams[exam.ID] = &exam
	s.questions[exam.ID] = qs
}

// GetExam retrieves an exam by id.
func (s *Store) GetExam(_ context.Context, examID int64) (*model.Exam, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, ok := s.exams[examID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	exam := *e
	return &exam, nil
}

// ListActiveExams returns active exams, newest first.
func (s *Store) ListActiveExams(_ context.Context) ([]model.Exam, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	exams := make([]model.Exam, 0, len(s.exams))
	for _, e := range s.exams {
		if e.IsActive {
			exams = append(exams, *e)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].ID > exams[j].ID })
	return exams, nil
}

// ListQuestions retrieves the questions of an exam with their options.
func (s *Store) ListQuestions(_ context.Context, examID int64) ([]model.Question, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return cloneQuestions(s.questions[examID]), nil
}

// CreateAttempt stores a new open attempt. Returns repository.ErrConflict
// when the student already holds an open attempt for the exam.
func (s *Store) CreateAttempt(_ context.Context, a *model.Attempt) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.attempts[a.ID]; ok {
		return repository.ErrConflict
	}
	for _, row := range s.attempts {
		at := row.attempt
		if at.StudentID == a.StudentID && at.ExamID == a.ExamID && at.State == model.AttemptStateOpen {
			return repository.ErrConflict
		}
	}

	s.attempts[a.ID] = &attemptRow{
		attempt: cloneAttempt(a),
		answers: make(map[int64]model.Answer),
	}
	return nil
}

// GetAttempt retrieves an attempt by id.
func (s *Store) GetAttempt(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	row, ok := s.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := cloneAttempt(&row.attempt)
	return &a, nil
}

// LatestAttempt returns the open attempt of a student at an exam, or the
// most recent closed one when none is open.
func (s *Store) LatestAttempt(_ context.Context, studentID int, examID int64) (*model.Attempt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var latest *model.Attempt
	for _, row := range s.attempts {
		at := &row.attempt
		if at.StudentID != studentID || at.ExamID != examID {
			continue
		}
		switch {
		case latest == nil:
			latest = at
		case at.IsOpen() != latest.IsOpen():
			if at.IsOpen() {
				latest = at
			}
		case at.StartedAt.After(latest.StartedAt):
			latest = at
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	a := cloneAttempt(latest)
	return &a, nil
}

// ListAttemptsByStudent retrieves every attempt of a student, newest first.
func (s *Store) ListAttemptsByStudent(_ context.Context, studentID int) ([]model.Attempt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var attempts []model.Attempt
	for _, row := range s.attempts {
		if row.attempt.StudentID == studentID {
			attempts = append(attempts, cloneAttempt(&row.attempt))
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].StartedAt.After(attempts[j].StartedAt) })
	return attempts, nil
}

// ListExpiredOpenAttempts returns ids of open attempts whose deadline is at
// or before now, oldest deadline first.
func (s *Store) ListExpiredOpenAttempts(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var due []*model.Attempt
	for _, row := range s.attempts {
		if row.attempt.State == model.AttemptStateOpen && !row.attempt.Deadline.After(now) {
			due = append(due, &row.attempt)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Deadline.Before(due[j].Deadline) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	ids := make([]uuid.UUID, len(due))
	for i, a := range due {
		ids[i] = a.ID
	}
	return ids, nil
}

// WithAttemptLock runs fn while holding the attempt's mutex. Writes made
// through the AttemptTx are staged and applied only when fn returns nil.
func (s *Store) WithAttemptLock(ctx context.Context, id uuid.UUID, fn func(tx repository.AttemptTx) error) error {
	s.mutex.RLock()
	row, ok := s.attempts[id]
	s.mutex.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	row.lock.Lock()
	defer row.lock.Unlock()

	s.mutex.RLock()
	tx := &memTx{
		attempt: cloneAttempt(&row.attempt),
		answers: make(map[int64]model.Answer, len(row.answers)),
		result:  row.result,
	}
	for k, v := range row.answers {
		tx.answers[k] = v
	}
	s.mutex.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	row.attempt.State = tx.attempt.State
	row.attempt.SubmittedAt = tx.attempt.SubmittedAt
	row.answers = tx.answers
	row.result = tx.result
	s.mutex.Unlock()
	return nil
}

type memTx struct {
	attempt model.Attempt
	answers map[int64]model.Answer
	result  *model.Result
}

func (t *memTx) Attempt() *model.Attempt { return &t.attempt }

func (t *memTx) UpsertAnswer(_ context.Context, a *model.Answer) error {
	ans := *a
	ans.AttemptID = t.attempt.ID
	t.answers[a.QuestionID] = ans
	return nil
}

func (t *memTx) ListAnswers(_ context.Context) ([]model.Answer, error) {
	answers := make([]model.Answer, 0, len(t.answers))
	for _, a := range t.answers {
		answers = append(answers, a)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}

func (t *memTx) GetResult(_ context.Context) (*model.Result, error) {
	if t.result == nil {
		return nil, repository.ErrNotFound
	}
	res := *t.result
	res.Items = append([]model.ResultItem(nil), t.result.Items...)
	return &res, nil
}

func (t *memTx) Close(_ context.Context, state model.AttemptState, closedAt time.Time, result *model.Result) error {
	if t.attempt.State != model.AttemptStateOpen || t.result != nil {
		return repository.ErrConflict
	}
	res := *result
	res.AttemptID = t.attempt.ID
	res.Items = append([]model.ResultItem(nil), result.Items...)

	t.attempt.State = state
	t.attempt.SubmittedAt = &closedAt
	t.result = &res
	return nil
}

func cloneAttempt(a *model.Attempt) model.Attempt {
	c := *a
	if a.SubmittedAt != nil {
		at := *a.SubmittedAt
		c.SubmittedAt = &at
	}
	c.Paper.Questions = cloneQuestions(a.Paper.Questions)
	return c
}

func cloneQuestions(qs []model.Question) []model.Question {
	if qs == nil {
		return nil
	}
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		out[i] = q
		out[i].Options = append([]model.Option(nil), q.Options...)
	}
	return out
}
