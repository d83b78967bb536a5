package model

import (
	"github.com/google/uuid"
)

// AnswerOption is a single multiple-choice answer key.
// The empty string means the question was left unanswered.
type AnswerOption string

const (
	AnswerA    AnswerOption = "A"
	AnswerB    AnswerOption = "B"
	AnswerC    AnswerOption = "C"
	AnswerD    AnswerOption = "D"
	AnswerNone AnswerOption = ""
)

// Valid reports whether the option is one of A, B, C, D.
func (a AnswerOption) Valid() bool {
	switch a {
	case AnswerA, AnswerB, AnswerC, AnswerD:
		return true
	}
	return false
}

// Question represents a single exam question. Questions are image-based:
// the statement and the four options are rendered inside the image.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	ImagePath     string       `json:"image_path"`
	CorrectAnswer AnswerOption `json:"correct_answer"`
	Explanation   *string      `json:"explanation,omitempty"`
	OrderNum      int          `json:"order_num"`
}

// QuestionForStudent is a question without the answer key, sent to students.
type QuestionForStudent struct {
	ID        uuid.UUID `json:"id"`
	ImagePath string    `json:"image_path"`
	OrderNum  int       `json:"order_num"`
}

// ForStudent strips the answer key and explanation.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:        q.ID,
		ImagePath: q.ImagePath,
		OrderNum:  q.OrderNum,
	}
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	ImagePath     string  `json:"image_path" binding:"required,min=1,max=500"`
	CorrectAnswer string  `json:"correct_answer" binding:"required,oneof=A B C D"`
	Explanation   *string `json:"explanation" binding:"omitempty,max=2000"`
	OrderNum      int     `json:"order_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
