// Package scoring grades submitted answer sheets against an exam's
// question set. Grading is a pure function: no clock, no store, no
// randomness — identical inputs always produce identical results, which
// the review-attempt flow depends on.
package scoring

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/bimbel-backend/internal/model"
)

// Grading errors, surfaced synchronously to the caller. The caller owns
// all state; on any of these nothing may be committed.
var (
	ErrNoQuestions         = errors.New("exam has no questions")
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
	ErrInvalidAnswer       = errors.New("answer is not one of A, B, C, D or empty")
)

// QuestionResult is the per-question grading detail, in canonical
// question order.
type QuestionResult struct {
	QuestionID    uuid.UUID          `json:"question_id"`
	OrderNum      int                `json:"order_num"`
	Selected      model.AnswerOption `json:"selected"`
	CorrectAnswer model.AnswerOption `json:"correct_answer"`
	Correct       bool               `json:"correct"`
	Unanswered    bool               `json:"unanswered"`
}

// ResultSummary aggregates one grading pass.
// Invariant: CorrectAnswers + WrongAnswers + Unanswered == TotalQuestions.
type ResultSummary struct {
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	CorrectAnswers int              `json:"correct_answers"`
	WrongAnswers   int              `json:"wrong_answers"`
	Unanswered     int              `json:"unanswered"`
	Percentage     float64          `json:"percentage"`
	Details        []QuestionResult `json:"details"`
}

// Grade scores one answer sheet against the given questions. Answers are
// positional: answers[i] belongs to questions[i]. An empty answer counts
// as unanswered, never as wrong. The answer slice length must equal the
// question count — a mismatch rejects the whole sheet before grading.
func Grade(questions []model.Question, answers []model.AnswerOption) (*ResultSummary, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if len(answers) != len(questions) {
		return nil, ErrAnswerCountMismatch
	}
	for _, a := range answers {
		if a != model.AnswerNone && !a.Valid() {
			return nil, ErrInvalidAnswer
		}
	}

	summary := &ResultSummary{
		TotalQuestions: len(questions),
		Details:        make([]QuestionResult, 0, len(questions)),
	}

	for i, q := range questions {
		selected := answers[i]
		detail := QuestionResult{
			QuestionID:    q.ID,
			OrderNum:      q.OrderNum,
			Selected:      selected,
			CorrectAnswer: q.CorrectAnswer,
		}

		switch {
		case selected == model.AnswerNone:
			detail.Unanswered = true
			summary.Unanswered++
		case selected == q.CorrectAnswer:
			detail.Correct = true
			summary.CorrectAnswers++
		default:
			summary.WrongAnswers++
		}

		summary.Details = append(summary.Details, detail)
	}

	summary.Score = summary.CorrectAnswers
	summary.Percentage = RoundPercentage(100 * float64(summary.CorrectAnswers) / float64(summary.TotalQuestions))

	return summary, nil
}

// RoundPercentage rounds to two decimal places, the platform-wide rule
// for every reported percentage.
func RoundPercentage(p float64) float64 {
	return math.Round(p*100) / 100
}
