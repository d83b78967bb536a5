package model

import (
	"time"

	"github.com/google/uuid"
)

// ReviewExam is the repeatable mistake-review exam derived from the wrong
// and unanswered questions of one student's first completion of an exam.
// It is owned by that student and generated exactly once per original exam.
type ReviewExam struct {
	ID             uuid.UUID `json:"id"`
	OriginalExamID uuid.UUID `json:"original_exam_id"`
	StudentID      int       `json:"student_id"`
	TotalAttempts  int       `json:"total_attempts"`
	BestPercentage float64   `json:"best_percentage"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReviewAttemptStart is returned when a student opens a new review attempt:
// the questions in their freshly shuffled presentation order, plus the
// order itself so the client can echo it back on submit.
type ReviewAttemptStart struct {
	ReviewExamID      uuid.UUID            `json:"review_exam_id"`
	Questions         []QuestionForStudent `json:"questions"`
	PresentationOrder []int                `json:"presentation_order"`
}

// SubmitReviewRequest carries the answers of one review attempt, positional
// against the shuffled presentation order the client received.
type SubmitReviewRequest struct {
	Answers           []string `json:"answers" binding:"required,dive,omitempty,oneof=A B C D"`
	PresentationOrder []int    `json:"presentation_order" binding:"required"`
}
