package model

import (
	"time"
)

// Exam is the catalog configuration of an online exam. The catalog is owned
// by the authoring side; the engine only reads it.
type Exam struct {
	ID                     int64      `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description,omitempty"`
	DurationMinutes        int        `json:"duration_minutes"`
	TotalMarks             *float64   `json:"total_marks,omitempty"`
	PassMarks              *float64   `json:"pass_marks,omitempty"`
	NegativeMarkingEnabled bool       `json:"negative_marking_enabled"`
	NegativeMarkValue      *float64   `json:"negative_mark_value,omitempty"`
	IsActive               bool       `json:"is_active"`
	StartAt                *time.Time `json:"start_at,omitempty"`
	EndAt                  *time.Time `json:"end_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Duration returns the configured exam length.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// OpenAt reports whether the exam is active and its activity window, when
// defined, contains t. Both window bounds are inclusive.
func (e *Exam) OpenAt(t time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.StartAt != nil && t.Before(*e.StartAt) {
		return false
	}
	if e.EndAt != nil && t.After(*e.EndAt) {
		return false
	}
	return true
}

// Question is a multiple-choice question with its options and answer key.
type Question struct {
	ID            int64    `json:"id"`
	ExamID        int64    `json:"exam_id"`
	Text          string   `json:"question_text"`
	Marks         float64  `json:"marks"`
	NegativeMarks *float64 `json:"negative_marks,omitempty"`
	Position      int      `json:"position"`
	Options       []Option `json:"options"`
}

// Option is one choice of a question. IsCorrect never leaves the server.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
	Position   int    `json:"position"`
}

// DefaultQuestionMarks is applied when the catalog leaves marks unset.
const DefaultQuestionMarks = 1.0

// Eligible reports whether the question can be scored: at least two options
// and exactly one of them flagged correct.
func (q *Question) Eligible() bool {
	if len(q.Options) < 2 {
		return false
	}
	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}
	return correct == 1
}

// Option returns the option with the given id, if it belongs to q.
func (q *Question) Option(optionID int64) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// PaperSnapshot is the full paper of an exam (settings, questions, answer
// key) as read from the catalog at one instant. Attempts keep their own
// copy so catalog edits cannot change a paper mid-attempt.
type PaperSnapshot struct {
	Exam      Exam       `json:"exam"`
	Questions []Question `json:"questions"`
}

// Question returns the snapshot question with the given id.
func (p *PaperSnapshot) Question(questionID int64) (*Question, bool) {
	for i := range p.Questions {
		if p.Questions[i].ID == questionID {
			return &p.Questions[i], true
		}
	}
	return nil, false
}

// ForStudent strips the answer key from the snapshot.
func (p *PaperSnapshot) ForStudent() *ExamPaper {
	questions := make([]QuestionForStudent, len(p.Questions))
	for i, q := range p.Questions {
		options := make([]OptionForStudent, len(q.Options))
		for j, o := range q.Options {
			options[j] = OptionForStudent{ID: o.ID, Text: o.Text}
		}
		questions[i] = QuestionForStudent{
			ID:            q.ID,
			Text:          q.Text,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			Options:       options,
		}
	}
	return &ExamPaper{
		Exam:      NewExamSummary(&p.Exam),
		Questions: questions,
	}
}

// ExamSummary is the student-facing view of an exam's settings.
type ExamSummary struct {
	ID                     int64      `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description,omitempty"`
	DurationMinutes        int        `json:"duration_minutes"`
	TotalMarks             *float64   `json:"total_marks,omitempty"`
	PassMarks              *float64   `json:"pass_marks,omitempty"`
	NegativeMarkingEnabled bool       `json:"negative_marking_enabled"`
	NegativeMarkValue      *float64   `json:"negative_mark_value,omitempty"`
	StartAt                *time.Time `json:"start_at,omitempty"`
	EndAt                  *time.Time `json:"end_at,omitempty"`
}

// NewExamSummary projects an exam onto its student-facing summary.
func NewExamSummary(e *Exam) ExamSummary {
	return ExamSummary{
		ID:                     e.ID,
		Title:                  e.Title,
		Description:            e.Description,
		DurationMinutes:        e.DurationMinutes,
		TotalMarks:             e.TotalMarks,
		PassMarks:              e.PassMarks,
		NegativeMarkingEnabled: e.NegativeMarkingEnabled,
		NegativeMarkValue:      e.NegativeMarkValue,
		StartAt:                e.StartAt,
		EndAt:                  e.EndAt,
	}
}

// ExamPaper is the paper sent to students (no correct answers).
type ExamPaper struct {
	Exam      ExamSummary          `json:"exam"`
	Questions []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answer.
type QuestionForStudent struct {
	ID            int64              `json:"id"`
	Text          string             `json:"question_text"`
	Marks         float64            `json:"marks"`
	NegativeMarks *float64           `json:"negative_marks,omitempty"`
	Options       []OptionForStudent `json:"options"`
}

// OptionForStudent is an option without its correctness flag.
type OptionForStudent struct {
	ID   int64  `json:"id"`
	Text string `json:"option_text"`
}
