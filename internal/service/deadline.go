package service

import (
	"time"

	"github.com/pragati/exam-engine/internal/model"
)

// Clock returns the current time. Services take one so tests can move time.
type Clock func() time.Time

// DeadlineEnforcer decides whether an attempt's time is up. The server
// clock is the only authority; client-reported times are never consulted.
type DeadlineEnforcer struct {
	now Clock
}

// NewDeadlineEnforcer creates a DeadlineEnforcer. A nil clock means time.Now.
func NewDeadlineEnforcer(now Clock) *DeadlineEnforcer {
	if now == nil {
		now = time.Now
	}
	return &DeadlineEnforcer{now: now}
}

// Now returns the enforcer's current time.
func (d *DeadlineEnforcer) Now() time.Time {
	return d.now()
}

// DeadlineFor computes the fixed deadline of an attempt starting at start.
func (d *DeadlineEnforcer) DeadlineFor(exam *model.Exam, start time.Time) time.Time {
	return start.Add(exam.Duration())
}

// IsExpired reports whether now is at or past the attempt's deadline.
func (d *DeadlineEnforcer) IsExpired(a *model.Attempt) bool {
	return !d.now().Before(a.Deadline)
}

// Remaining returns the time left before the deadline, never negative.
func (d *DeadlineEnforcer) Remaining(a *model.Attempt) time.Duration {
	if !a.IsOpen() {
		return 0
	}
	left := a.Deadline.Sub(d.now())
	if left < 0 {
		return 0
	}
	return left
}
