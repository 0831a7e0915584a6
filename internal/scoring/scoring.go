// Package scoring computes exam results from recorded answers and the
// answer key. Everything here is pure: no clock, no I/O.
package scoring

import (
	"math"

	"github.com/pragati/exam-engine/internal/model"
)

// Report is the outcome of scoring one attempt.
type Report struct {
	Total      float64
	Status     model.ResultStatus
	Correct    int
	Wrong      int
	Unanswered int
	Items      []model.ResultItem
}

// Score grades answers against the questions' answer key.
//
// A correct answer earns the question's marks. A wrong answer costs the
// question's negative-mark override, or the exam's negative-mark value,
// but only when the exam enables negative marking. Unanswered questions
// contribute nothing. The total is not clamped at zero.
//
// Status is pass/fail against the exam's pass marks and empty when the exam
// defines none.
func Score(exam *model.Exam, questions []model.Question, answers []model.Answer) Report {
	selected := make(map[int64]int64, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.OptionID
	}

	report := Report{Items: make([]model.ResultItem, 0, len(questions))}

	var total float64
	for i := range questions {
		q := &questions[i]
		item := model.ResultItem{QuestionID: q.ID}

		optionID, ok := selected[q.ID]
		var option *model.Option
		if ok {
			option, ok = q.Option(optionID)
		}
		if !ok {
			report.Unanswered++
			report.Items = append(report.Items, item)
			continue
		}

		id := option.ID
		item.OptionID = &id
		item.Answered = true

		if option.IsCorrect {
			item.IsCorrect = true
			item.Awarded = q.Marks
			report.Correct++
		} else {
			item.Awarded = -Penalty(exam, q)
			report.Wrong++
		}

		total += item.Awarded
		report.Items = append(report.Items, item)
	}

	report.Total = Round(total)
	report.Status = Status(exam, report.Total)
	return report
}

// Penalty returns the deduction for a wrong answer to q.
func Penalty(exam *model.Exam, q *model.Question) float64 {
	if !exam.NegativeMarkingEnabled {
		return 0
	}
	if q.NegativeMarks != nil {
		return *q.NegativeMarks
	}
	if exam.NegativeMarkValue != nil {
		return *exam.NegativeMarkValue
	}
	return 0
}

// Status resolves pass/fail for a total.
func Status(exam *model.Exam, total float64) model.ResultStatus {
	if exam.PassMarks == nil {
		return model.ResultStatusNone
	}
	if total >= *exam.PassMarks {
		return model.ResultStatusPass
	}
	return model.ResultStatusFail
}

// Round rounds to two decimals, the precision scores are stored with.
func Round(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
