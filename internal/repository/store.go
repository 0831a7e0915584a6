package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pragati/exam-engine/internal/model"
)

// Store errors shared by the PostgreSQL and in-memory implementations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("record conflicts with existing state")
	ErrCacheMiss = errors.New("cache miss")
)

// AttemptTx is the view of one attempt held under its lock. Every method
// runs inside the same critical section; nothing is visible to other
// callers until the surrounding WithAttemptLock returns nil.
type AttemptTx interface {
	// Attempt returns the locked attempt as read at lock time.
	Attempt() *model.Attempt
	// UpsertAnswer stores the answer, replacing any previous answer for the
	// same (attempt, question).
	UpsertAnswer(ctx context.Context, a *model.Answer) error
	ListAnswers(ctx context.Context) ([]model.Answer, error)
	// GetResult returns ErrNotFound while the attempt is open.
	GetResult(ctx context.Context) (*model.Result, error)
	// Close transitions the attempt from open to state and stores the
	// result. Returns ErrConflict if the attempt is no longer open.
	Close(ctx context.Context, state model.AttemptState, closedAt time.Time, result *model.Result) error
}
