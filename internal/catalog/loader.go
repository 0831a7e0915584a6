// Package catalog reads exam definitions authored as JSON files. It is used
// by the seed tooling and by the in-memory storage driver.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pragati/exam-engine/internal/model"
	"github.com/pragati/exam-engine/internal/validator"
)

// File is the top-level document: {"exams": [...]}.
type File struct {
	Exams []ExamDef `json:"exams" binding:"required,min=1,dive"`
}

// ExamDef is one exam with its questions.
type ExamDef struct {
	ID                     int64         `json:"id" binding:"required,gt=0"`
	Title                  string        `json:"title" binding:"required,max=255"`
	Description            string        `json:"description"`
	DurationMinutes        int           `json:"duration_minutes" binding:"required,gt=0"`
	TotalMarks             *float64      `json:"total_marks" binding:"omitempty,gte=0"`
	PassMarks              *float64      `json:"pass_marks" binding:"omitempty,gte=0"`
	NegativeMarkingEnabled bool          `json:"negative_marking_enabled"`
	NegativeMarkValue      *float64      `json:"negative_mark_value" binding:"omitempty,gte=0"`
	IsActive               bool          `json:"is_active"`
	StartAt                *time.Time    `json:"start_at"`
	EndAt                  *time.Time    `json:"end_at"`
	Questions              []QuestionDef `json:"questions" binding:"dive"`
}

type QuestionDef struct {
	ID            int64       `json:"id" binding:"required,gt=0"`
	Text          string      `json:"question_text" binding:"required"`
	Marks         *float64    `json:"marks" binding:"omitempty,gt=0"`
	NegativeMarks *float64    `json:"negative_marks" binding:"omitempty,gte=0"`
	Options       []OptionDef `json:"options" binding:"required,min=2,dive"`
}

type OptionDef struct {
	ID        int64  `json:"id" binding:"required,gt=0"`
	Text      string `json:"option_text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// Entry is a decoded exam ready to be stored.
type Entry struct {
	Exam      model.Exam
	Questions []model.Question
}

// ValidationError lists the offending fields of a definition.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid exam definition: %v", e.Fields)
}

// LoadFile opens path and decodes it with Decode.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses, repairs and validates a definition file. Questions whose
// options carry no correct flag get their first option marked correct;
// questions with more than one correct option are rejected.
func Decode(r io.Reader) ([]Entry, error) {
	var file File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode exam definitions: %w", err)
	}
	validator.Setup()
	if fields := validator.Struct(&file); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	seenExams := make(map[int64]bool, len(file.Exams))
	entries := make([]Entry, 0, len(file.Exams))
	for i := range file.Exams {
		def := &file.Exams[i]
		if seenExams[def.ID] {
			return nil, &ValidationError{Fields: map[string]string{
				fmt.Sprintf("exams[%d].id", i): fmt.Sprintf("duplicate exam id %d", def.ID),
			}}
		}
		seenExams[def.ID] = true

		if def.StartAt != nil && def.EndAt != nil && def.EndAt.Before(*def.StartAt) {
			return nil, &ValidationError{Fields: map[string]string{
				fmt.Sprintf("exams[%d].end_at", i): "end_at must not be before start_at",
			}}
		}

		questions, err := buildQuestions(i, def)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Exam: model.Exam{
				ID:                     def.ID,
				Title:                  def.Title,
				Description:            def.Description,
				DurationMinutes:        def.DurationMinutes,
				TotalMarks:             def.TotalMarks,
				PassMarks:              def.PassMarks,
				NegativeMarkingEnabled: def.NegativeMarkingEnabled,
				NegativeMarkValue:      def.NegativeMarkValue,
				IsActive:               def.IsActive,
				StartAt:                def.StartAt,
				EndAt:                  def.EndAt,
				CreatedAt:              time.Now().UTC(),
			},
			Questions: questions,
		})
	}
	return entries, nil
}

func buildQuestions(examIdx int, def *ExamDef) ([]model.Question, error) {
	seenQuestions := make(map[int64]bool, len(def.Questions))
	seenOptions := make(map[int64]bool)
	questions := make([]model.Question, 0, len(def.Questions))

	for qi, qd := range def.Questions {
		field := fmt.Sprintf("exams[%d].questions[%d]", examIdx, qi)
		if seenQuestions[qd.ID] {
			return nil, &ValidationError{Fields: map[string]string{field + ".id": fmt.Sprintf("duplicate question id %d", qd.ID)}}
		}
		seenQuestions[qd.ID] = true

		marks := model.DefaultQuestionMarks
		if qd.Marks != nil {
			marks = *qd.Marks
		}
		q := model.Question{
			ID:            qd.ID,
			ExamID:        def.ID,
			Text:          qd.Text,
			Marks:         marks,
			NegativeMarks: qd.NegativeMarks,
			Position:      qi + 1,
			Options:       make([]model.Option, 0, len(qd.Options)),
		}

		correct := 0
		for oi, od := range qd.Options {
			if seenOptions[od.ID] {
				return nil, &ValidationError{Fields: map[string]string{
					fmt.Sprintf("%s.options[%d].id", field, oi): fmt.Sprintf("duplicate option id %d", od.ID),
				}}
			}
			seenOptions[od.ID] = true
			if od.IsCorrect {
				correct++
			}
			q.Options = append(q.Options, model.Option{
				ID:         od.ID,
				QuestionID: qd.ID,
				Text:       od.Text,
				IsCorrect:  od.IsCorrect,
				Position:   oi + 1,
			})
		}

		switch {
		case correct == 0:
			q.Options[0].IsCorrect = true
		case correct > 1:
			return nil, &ValidationError{Fields: map[string]string{field + ".options": "exactly one option may be correct"}}
		}
		questions = append(questions, q)
	}
	return questions, nil
}
