package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pragati/exam-engine/internal/model"
	"github.com/pragati/exam-engine/internal/repository"
	"github.com/rs/zerolog"
)

// CatalogStore reads the exam catalog.
type CatalogStore interface {
	GetExam(ctx context.Context, examID int64) (*model.Exam, error)
	ListActiveExams(ctx context.Context) ([]model.Exam, error)
	ListQuestions(ctx context.Context, examID int64) ([]model.Question, error)
}

// PaperCache caches question sets keyed by exam.
type PaperCache interface {
	GetPaper(ctx context.Context, examID int64) (*model.PaperSnapshot, error)
	SetPaper(ctx context.Context, paper *model.PaperSnapshot) error
	DeletePaper(ctx context.Context, examID int64) error
}

// CatalogService is the read side of the exam catalog.
type CatalogService struct {
	store    CatalogStore
	cache    PaperCache
	deadline *DeadlineEnforcer
	log      zerolog.Logger
}

// NewCatalogService creates a new CatalogService. cache may be nil.
func NewCatalogService(store CatalogStore, cache PaperCache, deadline *DeadlineEnforcer, log zerolog.Logger) *CatalogService {
	return &CatalogService{store: store, cache: cache, deadline: deadline, log: log}
}

// GetPaper returns the student-facing paper of an exam, without the
// answer key.
func (s *CatalogService) GetPaper(ctx context.Context, studentID int, examID int64) (*model.ExamPaper, error) {
	snap, err := s.Snapshot(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int("student_id", studentID).Int64("exam_id", examID).Msg("Paper served")
	return snap.ForStudent(), nil
}

// Snapshot returns the full paper of an exam including the answer key.
// The exam row is always read fresh so activity and window checks never
// see stale settings; only the question set is served from cache.
func (s *CatalogService) Snapshot(ctx context.Context, examID int64) (*model.PaperSnapshot, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.OpenAt(s.deadline.Now()) {
		return nil, ErrExamUnavailable
	}
	if exam.DurationMinutes <= 0 {
		return nil, ErrExamUnavailable
	}

	questions, err := s.questions(ctx, examID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if !questions[i].Eligible() {
			s.log.Warn().Int64("exam_id", examID).Int64("question_id", questions[i].ID).
				Msg("Question is not eligible for scoring, exam withheld")
			return nil, ErrExamUnavailable
		}
	}

	return &model.PaperSnapshot{Exam: *exam, Questions: questions}, nil
}

func (s *CatalogService) questions(ctx context.Context, examID int64) ([]model.Question, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPaper(ctx, examID)
		if err == nil {
			return cached.Questions, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.log.Warn().Err(err).Int64("exam_id", examID).Msg("Paper cache read failed")
		}
	}

	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}

	if s.cache != nil {
		paper := &model.PaperSnapshot{Exam: model.Exam{ID: examID}, Questions: questions}
		if err := s.cache.SetPaper(ctx, paper); err != nil {
			s.log.Warn().Err(err).Int64("exam_id", examID).Msg("Failed to cache paper")
		}
	}
	return questions, nil
}

// ListAvailable returns active exams whose window contains now.
func (s *CatalogService) ListAvailable(ctx context.Context) ([]model.ExamSummary, error) {
	exams, err := s.store.ListActiveExams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	now := s.deadline.Now()
	available := []model.ExamSummary{}
	for i := range exams {
		if exams[i].OpenAt(now) {
			available = append(available, model.NewExamSummary(&exams[i]))
		}
	}
	return available, nil
}

// InvalidatePaper drops the cached question set of an exam.
func (s *CatalogService) InvalidatePaper(ctx context.Context, examID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeletePaper(ctx, examID)
}
