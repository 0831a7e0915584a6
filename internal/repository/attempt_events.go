package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/redis/go-redis/v9"
)

// AttemptEvent is published whenever an attempt starts or closes, for
// proctoring dashboards and other listeners outside the engine.
type AttemptEvent struct {
	Type       string             `json:"type"`
	AttemptID  uuid.UUID          `json:"attempt_id"`
	StudentID  int                `json:"student_id"`
	ExamID     int64              `json:"exam_id"`
	State      model.AttemptState `json:"state"`
	TotalScore *float64           `json:"total_score,omitempty"`
	At         time.Time          `json:"at"`
}

// Attempt event types.
const (
	AttemptEventStarted = "attempt_started"
	AttemptEventClosed  = "attempt_closed"
)

// AttemptEventPublisher fans attempt events out on a per-exam Redis channel.
type AttemptEventPublisher struct {
	rdb *redis.Client
}

// NewAttemptEventPublisher creates a new AttemptEventPublisher.
func NewAttemptEventPublisher(rdb *redis.Client) *AttemptEventPublisher {
	return &AttemptEventPublisher{rdb: rdb}
}

// Publish sends the event on the exam's channel.
func (p *AttemptEventPublisher) Publish(ctx context.Context, ev AttemptEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, config.CacheKey.AttemptEventsChannel(ev.ExamID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
