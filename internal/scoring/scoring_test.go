package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pragati/exam-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

// twoQuestions builds Q1 (options 11 correct, 12) and Q2 (options 21, 22 correct).
func twoQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Marks: 1, Options: []model.Option{
			{ID: 11, QuestionID: 1, IsCorrect: true},
			{ID: 12, QuestionID: 1},
		}},
		{ID: 2, Marks: 1, Options: []model.Option{
			{ID: 21, QuestionID: 2},
			{ID: 22, QuestionID: 2, IsCorrect: true},
		}},
	}
}

func answers(pairs ...int64) []model.Answer {
	attemptID := uuid.New()
	out := make([]model.Answer, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Answer{AttemptID: attemptID, QuestionID: pairs[i], OptionID: pairs[i+1]})
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		exam       model.Exam
		questions  []model.Question
		answers    []model.Answer
		total      float64
		status     model.ResultStatus
		correct    int
		wrong      int
		unanswered int
	}{
		{
			name:      "all correct without negative marking",
			exam:      model.Exam{DurationMinutes: 10},
			questions: twoQuestions(),
			answers:   answers(1, 11, 2, 22),
			total:     2, status: model.ResultStatusNone, correct: 2,
		},
		{
			name:      "all correct meets pass marks",
			exam:      model.Exam{DurationMinutes: 10, PassMarks: f(2)},
			questions: twoQuestions(),
			answers:   answers(1, 11, 2, 22),
			total:     2, status: model.ResultStatusPass, correct: 2,
		},
		{
			name:      "negative marking exam value",
			exam:      model.Exam{NegativeMarkingEnabled: true, NegativeMarkValue: f(0.5)},
			questions: twoQuestions(),
			answers:   answers(1, 11, 2, 21),
			total:     0.5, status: model.ResultStatusNone, correct: 1, wrong: 1,
		},
		{
			name: "per-question override wins over exam value",
			exam: model.Exam{NegativeMarkingEnabled: true, NegativeMarkValue: f(0.5)},
			questions: func() []model.Question {
				qs := twoQuestions()
				qs[1].NegativeMarks = f(0.25)
				return qs
			}(),
			answers: answers(1, 11, 2, 21),
			total:   0.75, status: model.ResultStatusNone, correct: 1, wrong: 1,
		},
		{
			name:      "negative value ignored when marking disabled",
			exam:      model.Exam{NegativeMarkingEnabled: false, NegativeMarkValue: f(0.5)},
			questions: twoQuestions(),
			answers:   answers(1, 12, 2, 21),
			total:     0, status: model.ResultStatusNone, wrong: 2,
		},
		{
			name:      "null negative value counts as zero",
			exam:      model.Exam{NegativeMarkingEnabled: true},
			questions: twoQuestions(),
			answers:   answers(1, 12),
			total:     0, status: model.ResultStatusNone, wrong: 1, unanswered: 1,
		},
		{
			name:      "total may go below zero",
			exam:      model.Exam{NegativeMarkingEnabled: true, NegativeMarkValue: f(1), PassMarks: f(0)},
			questions: twoQuestions(),
			answers:   answers(1, 12, 2, 21),
			total:     -2, status: model.ResultStatusFail, wrong: 2,
		},
		{
			name:      "no answers scores zero and never applies penalty",
			exam:      model.Exam{NegativeMarkingEnabled: true, NegativeMarkValue: f(1), PassMarks: f(1)},
			questions: twoQuestions(),
			total:     0, status: model.ResultStatusFail, unanswered: 2,
		},
		{
			name:      "option from another question counts as unanswered",
			exam:      model.Exam{NegativeMarkingEnabled: true, NegativeMarkValue: f(1)},
			questions: twoQuestions(),
			answers:   answers(1, 22),
			total:     0, status: model.ResultStatusNone, unanswered: 2,
		},
		{
			name: "question marks are weighted",
			exam: model.Exam{PassMarks: f(3)},
			questions: func() []model.Question {
				qs := twoQuestions()
				qs[0].Marks = 2.5
				return qs
			}(),
			answers: answers(1, 11, 2, 22),
			total:   3.5, status: model.ResultStatusPass, correct: 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(&tc.exam, tc.questions, tc.answers)
			assert.Equal(t, tc.total, got.Total)
			assert.Equal(t, tc.status, got.Status)
			assert.Equal(t, tc.correct, got.Correct)
			assert.Equal(t, tc.wrong, got.Wrong)
			assert.Equal(t, tc.unanswered, got.Unanswered)
			require.Len(t, got.Items, len(tc.questions))
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	exam := model.Exam{NegativeMarkingEnabled: true, NegativeMarkValue: f(0.33), PassMarks: f(0.5)}
	qs := twoQuestions()
	ans := answers(2, 21, 1, 11)

	first := Score(&exam, qs, ans)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Score(&exam, qs, ans))
	}
	assert.Equal(t, 0.67, first.Total)
	assert.Equal(t, model.ResultStatusPass, first.Status)
}

func TestScore_Items(t *testing.T) {
	exam := model.Exam{NegativeMarkingEnabled: true, NegativeMarkValue: f(0.5)}
	got := Score(&exam, twoQuestions(), answers(2, 21))

	require.Len(t, got.Items, 2)
	assert.False(t, got.Items[0].Answered)
	assert.Nil(t, got.Items[0].OptionID)
	assert.Equal(t, 0.0, got.Items[0].Awarded)

	assert.True(t, got.Items[1].Answered)
	require.NotNil(t, got.Items[1].OptionID)
	assert.Equal(t, int64(21), *got.Items[1].OptionID)
	assert.False(t, got.Items[1].IsCorrect)
	assert.Equal(t, -0.5, got.Items[1].Awarded)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.3, Round(0.1+0.2))
	assert.Equal(t, 0.0, Round(-0.001))
	assert.Equal(t, -1.25, Round(-1.25))
}
