package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/bimbel-backend/internal/model"
)

func makeQuestions(keys ...model.AnswerOption) []model.Question {
	qs := make([]model.Question, len(keys))
	for i, k := range keys {
		qs[i] = model.Question{
			ID:            uuid.New(),
			CorrectAnswer: k,
			OrderNum:      i + 1,
		}
	}
	return qs
}

func answers(vals ...string) []model.AnswerOption {
	out := make([]model.AnswerOption, len(vals))
	for i, v := range vals {
		out[i] = model.AnswerOption(v)
	}
	return out
}

func TestGradeRejectsEmptyExam(t *testing.T) {
	_, err := Grade(nil, nil)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestGradeRejectsCountMismatch(t *testing.T) {
	qs := makeQuestions(model.AnswerA, model.AnswerB)

	_, err := Grade(qs, answers("A"))
	assert.ErrorIs(t, err, ErrAnswerCountMismatch)

	_, err = Grade(qs, answers("A", "B", "C"))
	assert.ErrorIs(t, err, ErrAnswerCountMismatch)
}

func TestGradeRejectsMalformedAnswer(t *testing.T) {
	qs := makeQuestions(model.AnswerA, model.AnswerB)

	_, err := Grade(qs, answers("A", "E"))
	assert.ErrorIs(t, err, ErrInvalidAnswer)
}

func TestGradeUnansweredIsNotWrong(t *testing.T) {
	qs := makeQuestions(model.AnswerA, model.AnswerB, model.AnswerC)

	summary, err := Grade(qs, answers("A", "", ""))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CorrectAnswers)
	assert.Equal(t, 0, summary.WrongAnswers)
	assert.Equal(t, 2, summary.Unanswered)
	assert.True(t, summary.Details[1].Unanswered)
	assert.False(t, summary.Details[1].Correct)
}

func TestGradeCountsAlwaysSumToTotal(t *testing.T) {
	qs := makeQuestions(model.AnswerA, model.AnswerB, model.AnswerC, model.AnswerD, model.AnswerA)

	cases := [][]string{
		{"A", "B", "C", "D", "A"},
		{"", "", "", "", ""},
		{"B", "C", "", "D", ""},
		{"D", "A", "B", "C", "B"},
	}

	for _, c := range cases {
		summary, err := Grade(qs, answers(c...))
		require.NoError(t, err)
		assert.Equal(t, summary.TotalQuestions,
			summary.CorrectAnswers+summary.WrongAnswers+summary.Unanswered,
			"answers %v", c)
	}
}

func TestGradeFiveQuestionScenario(t *testing.T) {
	// Correct key A,B,D,D,A — submitted A,B,C,D,A: four right, one wrong.
	qs := makeQuestions(model.AnswerA, model.AnswerB, model.AnswerD, model.AnswerD, model.AnswerA)

	summary, err := Grade(qs, answers("A", "B", "C", "D", "A"))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Score)
	assert.Equal(t, 1, summary.WrongAnswers)
	assert.Equal(t, 0, summary.Unanswered)
	assert.InDelta(t, 80.00, summary.Percentage, 0.0001)

	// Only question 3 was missed.
	assert.False(t, summary.Details[2].Correct)
	assert.Equal(t, qs[2].ID, summary.Details[2].QuestionID)
}

func TestGradeIsDeterministic(t *testing.T) {
	qs := makeQuestions(model.AnswerA, model.AnswerC, model.AnswerB)
	sheet := answers("A", "", "D")

	first, err := Grade(qs, sheet)
	require.NoError(t, err)
	second, err := Grade(qs, sheet)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGradePercentageRounding(t *testing.T) {
	// 1 of 3 correct → 33.333…% must report as 33.33.
	qs := makeQuestions(model.AnswerA, model.AnswerB, model.AnswerC)

	summary, err := Grade(qs, answers("A", "C", "B"))
	require.NoError(t, err)
	assert.InDelta(t, 33.33, summary.Percentage, 0.0001)
}

func TestRoundPercentage(t *testing.T) {
	assert.InDelta(t, 76.67, RoundPercentage(100*23.0/30.0), 0.0001)
	assert.InDelta(t, 66.67, RoundPercentage(100*2.0/3.0), 0.0001)
	assert.InDelta(t, 80.0, RoundPercentage(80.0), 0.0001)
	assert.InDelta(t, 0.0, RoundPercentage(0.0), 0.0001)
}
