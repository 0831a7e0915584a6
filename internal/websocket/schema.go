package websocket

import (
	"time"

	"github.com/pragati/exam-engine/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records a single answer.
type AnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID int64  `json:"question_id" binding:"required,gt=0"`
	OptionID   int64  `json:"option_id" binding:"required,gt=0"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSaved   Event = "saved"
	EventGraded  Event = "graded"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
)

type SavedResponse struct {
	Event            Event   `json:"event"`
	QuestionID       int64   `json:"question_id"`
	OptionID         int64   `json:"option_id"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// ResultResponse carries the final result with EventGraded or EventExpired.
type ResultResponse struct {
	Event  Event         `json:"event"`
	Result *model.Result `json:"result"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event            Event     `json:"event"`
	ServerTime       time.Time `json:"server_time"`
	RemainingSeconds float64   `json:"remaining_seconds"`
}
