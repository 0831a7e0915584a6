package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pragati/exam-engine/internal/model"
)

// CatalogRepository reads exams, questions and options. The engine never
// writes these tables.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const selectExam = `SELECT id, title, COALESCE(description, ''), duration_minutes,
	        total_marks, pass_marks, negative_marking_enabled, negative_mark_value,
	        is_active, start_at, end_at, created_at
	 FROM exams`

func scanExam(row pgx.Row, e *model.Exam) error {
	return row.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes,
		&e.TotalMarks, &e.PassMarks, &e.NegativeMarkingEnabled, &e.NegativeMarkValue,
		&e.IsActive, &e.StartAt, &e.EndAt, &e.CreatedAt)
}

// GetExam retrieves an exam by id.
func (r *CatalogRepository) GetExam(ctx context.Context, examID int64) (*model.Exam, error) {
	e := &model.Exam{}
	if err := scanExam(r.pool.QueryRow(ctx, selectExam+` WHERE id = $1`, examID), e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListActiveExams returns active exams, newest first. Window filtering is
// left to the caller so it can use its own clock.
func (r *CatalogRepository) ListActiveExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx, selectExam+` WHERE is_active ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ListQuestions retrieves all questions of an exam with their options,
// both ordered by position then id.
func (r *CatalogRepository) ListQuestions(ctx context.Context, examID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.exam_id, q.question_text, COALESCE(q.marks, 1), q.negative_marks, q.position,
		        o.id, o.option_text, o.is_correct, o.position
		 FROM exam_questions q
		 LEFT JOIN exam_options o ON o.question_id = q.id
		 WHERE q.exam_id = $1
		 ORDER BY q.position, q.id, o.position, o.id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q         model.Question
			optID     *int64
			optText   *string
			optOK     *bool
			optPosPtr *int
		)
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Marks, &q.NegativeMarks, &q.Position,
			&optID, &optText, &optOK, &optPosPtr); err != nil {
			return nil, err
		}

		if n := len(questions); n == 0 || questions[n-1].ID != q.ID {
			q.Options = []model.Option{}
			questions = append(questions, q)
		}
		if optID == nil {
			continue
		}

		last := &questions[len(questions)-1]
		opt := model.Option{ID: *optID, QuestionID: q.ID}
		if optText != nil {
			opt.Text = *optText
		}
		if optOK != nil {
			opt.IsCorrect = *optOK
		}
		if optPosPtr != nil {
			opt.Position = *optPosPtr
		}
		last.Options = append(last.Options, opt)
	}
	return questions, rows.Err()
}
