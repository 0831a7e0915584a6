package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pragati/exam-engine/internal/model"
)

// AttemptRepository handles attempts, their answers and results.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const selectAttempt = `SELECT id, student_id, exam_id, started_at, deadline, state, submitted_at, paper
	 FROM exam_attempts`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var paper []byte
	if err := row.Scan(&a.ID, &a.StudentID, &a.ExamID, &a.StartedAt, &a.Deadline,
		&a.State, &a.SubmittedAt, &paper); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(paper, &a.Paper); err != nil {
		return nil, fmt.Errorf("decode paper snapshot: %w", err)
	}
	return a, nil
}

// CreateAttempt inserts a new open attempt. Returns ErrConflict when the
// student already holds an open attempt for the exam.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	paper, err := json.Marshal(a.Paper)
	if err != nil {
		return fmt.Errorf("encode paper snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_attempts (id, student_id, exam_id, started_at, deadline, state, paper)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.StudentID, a.ExamID, a.StartedAt, a.Deadline, a.State, paper,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetAttempt retrieves an attempt by id.
func (r *AttemptRepository) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx, selectAttempt+` WHERE id = $1`, id))
}

// LatestAttempt returns the open attempt of a student at an exam, or the
// most recent closed one when none is open.
func (r *AttemptRepository) LatestAttempt(ctx context.Context, studentID int, examID int64) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		selectAttempt+` WHERE student_id = $1 AND exam_id = $2
		 ORDER BY (state = $3) DESC, started_at DESC LIMIT 1`, studentID, examID, model.AttemptStateOpen))
}

// ListAttemptsByStudent retrieves every attempt of a student, newest first.
func (r *AttemptRepository) ListAttemptsByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		selectAttempt+` WHERE student_id = $1 ORDER BY started_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// ListExpiredOpenAttempts returns ids of open attempts whose deadline is at
// or before now, oldest deadline first.
func (r *AttemptRepository) ListExpiredOpenAttempts(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_attempts
		 WHERE state = $1 AND deadline <= $2
		 ORDER BY deadline
		 LIMIT $3`, model.AttemptStateOpen, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WithAttemptLock runs fn in a transaction holding the attempt's row lock.
// The transaction commits only when fn returns nil.
func (r *AttemptRepository) WithAttemptLock(ctx context.Context, id uuid.UUID, fn func(tx AttemptTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := scanAttempt(tx.QueryRow(ctx, selectAttempt+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return err
	}

	if err := fn(&pgAttemptTx{tx: tx, attempt: a}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgAttemptTx struct {
	tx      pgx.Tx
	attempt *model.Attempt
}

func (t *pgAttemptTx) Attempt() *model.Attempt { return t.attempt }

func (t *pgAttemptTx) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO exam_answers (attempt_id, question_id, option_id, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET option_id = EXCLUDED.option_id, updated_at = EXCLUDED.updated_at`,
		t.attempt.ID, a.QuestionID, a.OptionID, a.UpdatedAt,
	)
	return err
}

func (t *pgAttemptTx) ListAnswers(ctx context.Context) ([]model.Answer, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT attempt_id, question_id, option_id, updated_at
		 FROM exam_answers WHERE attempt_id = $1
		 ORDER BY question_id`, t.attempt.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.OptionID, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (t *pgAttemptTx) GetResult(ctx context.Context) (*model.Result, error) {
	res := &model.Result{AttemptID: t.attempt.ID}
	var (
		status *string
		items  []byte
	)
	err := t.tx.QueryRow(ctx,
		`SELECT total_score, status, correct_count, wrong_count, unanswered_count, items, created_at
		 FROM exam_results WHERE attempt_id = $1`, t.attempt.ID,
	).Scan(&res.TotalScore, &status, &res.Correct, &res.Wrong, &res.Unanswered, &items, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if status != nil {
		res.Status = model.ResultStatus(*status)
	}
	if err := json.Unmarshal(items, &res.Items); err != nil {
		return nil, fmt.Errorf("decode result items: %w", err)
	}
	return res, nil
}

func (t *pgAttemptTx) Close(ctx context.Context, state model.AttemptState, closedAt time.Time, result *model.Result) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE exam_attempts SET state = $2, submitted_at = $3
		 WHERE id = $1 AND state = $4`,
		t.attempt.ID, state, closedAt, model.AttemptStateOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}

	items, err := json.Marshal(result.Items)
	if err != nil {
		return fmt.Errorf("encode result items: %w", err)
	}
	var status *string
	if result.Status != model.ResultStatusNone {
		s := string(result.Status)
		status = &s
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO exam_results (attempt_id, total_score, status, correct_count, wrong_count, unanswered_count, items, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.attempt.ID, result.TotalScore, status, result.Correct, result.Wrong, result.Unanswered, items, result.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}

	t.attempt.State = state
	t.attempt.SubmittedAt = &closedAt
	return nil
}
