package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pragati/exam-engine/internal/model"
)

// CatalogImporter writes authored exams into the catalog tables. Only the
// seed tooling uses it.
type CatalogImporter struct {
	pool *pgxpool.Pool
}

// NewCatalogImporter creates a new CatalogImporter.
func NewCatalogImporter(pool *pgxpool.Pool) *CatalogImporter {
	return &CatalogImporter{pool: pool}
}

// ImportExam upserts the exam row and replaces its questions and options
// in a single transaction. Existing attempts keep their own snapshot.
func (r *CatalogImporter) ImportExam(ctx context.Context, exam *model.Exam, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO exams (id, title, description, duration_minutes, total_marks, pass_marks,
		                    negative_marking_enabled, negative_mark_value, is_active, start_at, end_at, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   duration_minutes = EXCLUDED.duration_minutes,
		   total_marks = EXCLUDED.total_marks,
		   pass_marks = EXCLUDED.pass_marks,
		   negative_marking_enabled = EXCLUDED.negative_marking_enabled,
		   negative_mark_value = EXCLUDED.negative_mark_value,
		   is_active = EXCLUDED.is_active,
		   start_at = EXCLUDED.start_at,
		   end_at = EXCLUDED.end_at`,
		exam.ID, exam.Title, exam.Description, exam.DurationMinutes, exam.TotalMarks, exam.PassMarks,
		exam.NegativeMarkingEnabled, exam.NegativeMarkValue, exam.IsActive, exam.StartAt, exam.EndAt, exam.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert exam: %w", err)
	}

	// Options go with their questions via ON DELETE CASCADE.
	if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, exam.ID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	questionRows := make([][]interface{}, 0, len(questions))
	var optionRows [][]interface{}
	for _, q := range questions {
		questionRows = append(questionRows, []interface{}{q.ID, exam.ID, q.Text, q.Marks, q.NegativeMarks, q.Position})
		for _, o := range q.Options {
			optionRows = append(optionRows, []interface{}{o.ID, q.ID, o.Text, o.IsCorrect, o.Position})
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"exam_questions"},
		[]string{"id", "exam_id", "question_text", "marks", "negative_marks", "position"},
		pgx.CopyFromRows(questionRows),
	); err != nil {
		return fmt.Errorf("copy questions: %w", err)
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"exam_options"},
		[]string{"id", "question_id", "option_text", "is_correct", "position"},
		pgx.CopyFromRows(optionRows),
	); err != nil {
		return fmt.Errorf("copy options: %w", err)
	}

	// Explicit ids leave the serial sequences behind.
	for _, table := range []string{"exams", "exam_questions", "exam_options"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT MAX(id) FROM %[1]s), 1))`, table,
		)); err != nil {
			return fmt.Errorf("sync %s sequence: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}
