// Package review derives a repeatable mistake-review exam from a graded
// original attempt and handles the per-attempt shuffling. Like the scoring
// engine it is pure: the service layer owns persistence and the Redis-held
// attempt permutation.
package review

import (
	"errors"
	"math/rand/v2"

	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/scoring"
)

var (
	ErrDetailMismatch = errors.New("grading detail does not match question set")
	ErrBadOrder       = errors.New("presentation order is not a permutation of the question set")
)

// SelectQuestions picks every question the student answered wrong or left
// unanswered, preserving the original exam's question order. An empty
// result means a perfect score: no review exam exists for it.
func SelectQuestions(questions []model.Question, details []scoring.QuestionResult) ([]model.Question, error) {
	if len(questions) != len(details) {
		return nil, ErrDetailMismatch
	}

	var selected []model.Question
	for i, d := range details {
		if d.QuestionID != questions[i].ID {
			return nil, ErrDetailMismatch
		}
		if !d.Correct {
			selected = append(selected, questions[i])
		}
	}
	return selected, nil
}

// ShuffledOrder returns a fresh uniform random permutation of [0, n) via
// Fisher–Yates. Each attempt gets its own order so review questions are
// re-encountered in new positions.
func ShuffledOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ValidOrder reports whether order is a permutation of [0, n).
func ValidOrder(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// CanonicalAnswers maps answers collected against a shuffled presentation
// back to canonical question order. order[i] is the canonical index of the
// question shown at position i, so canonical[order[i]] = shuffled[i].
func CanonicalAnswers(shuffled []model.AnswerOption, order []int) ([]model.AnswerOption, error) {
	if !ValidOrder(order, len(shuffled)) {
		return nil, ErrBadOrder
	}
	canonical := make([]model.AnswerOption, len(shuffled))
	for i, idx := range order {
		canonical[idx] = shuffled[i]
	}
	return canonical, nil
}

// BestPercentage folds one attempt's percentage into the running best.
// The best never decreases.
func BestPercentage(current, attempt float64) float64 {
	if attempt > current {
		return attempt
	}
	return current
}
