package model

import (
	"time"

	"github.com/google/uuid"
)

// ProgressStatus enumerates the per-(student, exam) progression states.
// The set is closed: every switch over it must be exhaustive.
type ProgressStatus string

const (
	ProgressStatusLocked     ProgressStatus = "LOCKED"
	ProgressStatusUnlocked   ProgressStatus = "UNLOCKED"
	ProgressStatusInProgress ProgressStatus = "IN_PROGRESS"
	ProgressStatusCompleted  ProgressStatus = "COMPLETED"
)

// ExamProgress is the authoritative progression record for one student on
// one exam. Exactly one row exists per (student, exam); it is created on
// first unlock and never deleted, only transitioned.
type ExamProgress struct {
	ID               uuid.UUID      `json:"id"`
	ExamID           uuid.UUID      `json:"exam_id"`
	StudentID        int            `json:"student_id"`
	Status           ProgressStatus `json:"status"`
	Score            *int           `json:"score,omitempty"`
	TotalQuestions   *int           `json:"total_questions,omitempty"`
	Percentage       *float64       `json:"percentage,omitempty"`
	TimeSpentSeconds *int           `json:"time_spent_seconds,omitempty"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
	ReviewExamID     *uuid.UUID     `json:"review_exam_id,omitempty"`
	BestReviewScore  *float64       `json:"best_review_score,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SubmitExamRequest carries the full answer sheet for one exam submission.
// Answers are positional (one per question, in question order); an empty
// string marks an unanswered question.
type SubmitExamRequest struct {
	Answers []string `json:"answers" binding:"required,dive,omitempty,oneof=A B C D"`
}

// AttemptState is the reload-recovery view of an in-progress attempt:
// autosaved answers plus the remaining time.
type AttemptState struct {
	ExamID           uuid.UUID         `json:"exam_id"`
	StudentID        int               `json:"student_id"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingSeconds float64           `json:"remaining_seconds"`
}

// GroupExamStatus is one entry of a student's group status view: the
// derived per-exam state in progression order. Exams the student has no
// row for yet read as LOCKED.
type GroupExamStatus struct {
	ExamID     uuid.UUID      `json:"exam_id"`
	Title      string         `json:"title"`
	GroupOrder int            `json:"group_order"`
	Status     ProgressStatus `json:"status"`
	Percentage *float64       `json:"percentage,omitempty"`
}

// ExamStats is the per-exam aggregate shown on the teacher dashboard.
type ExamStats struct {
	ExamID            uuid.UUID `json:"exam_id"`
	InProgressCount   int       `json:"in_progress_count"`
	CompletedCount    int       `json:"completed_count"`
	AveragePercentage float64   `json:"average_percentage"`
}

// StudentProgress is one student's row in the teacher's per-exam progress
// view.
type StudentProgress struct {
	StudentID        int            `json:"student_id"`
	NISN             string         `json:"nisn"`
	Name             string         `json:"name"`
	Status           ProgressStatus `json:"status"`
	Score            *int           `json:"score,omitempty"`
	TotalQuestions   *int           `json:"total_questions,omitempty"`
	Percentage       *float64       `json:"percentage,omitempty"`
	TimeSpentSeconds *int           `json:"time_spent_seconds,omitempty"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
	BestReviewScore  *float64       `json:"best_review_score,omitempty"`
}

// OverrideAction is a teacher's manual progression override.
type OverrideAction string

const (
	OverrideOpen  OverrideAction = "open"
	OverrideClose OverrideAction = "close"
)

// ToggleRequest is the payload for teacher exam/group toggles.
type ToggleRequest struct {
	Action OverrideAction `json:"action" binding:"required,oneof=open close"`
}

// ToggleOutcome reports the result of one per-exam override application.
// Bulk group toggles return one outcome per exam; skipped exams carry the
// guard reason instead of failing the whole batch.
type ToggleOutcome struct {
	ExamID     uuid.UUID      `json:"exam_id"`
	GroupOrder int            `json:"group_order"`
	Applied    bool           `json:"applied"`
	Status     ProgressStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
}
