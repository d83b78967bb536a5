package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the authoring states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// FoundationGroup is the exam group reserved for foundation material.
const FoundationGroup = 0

// Exam represents an exam entity. Exams live inside an exam group and
// carry a group order that defines the progression sequence.
type Exam struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	TeacherID        int        `json:"teacher_id"`
	ExamGroup        int        `json:"exam_group"`
	GroupOrder       int        `json:"group_order"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	IsFreeExam       bool       `json:"is_free_exam"`
	FreeExamOrder    *int       `json:"free_exam_order,omitempty"`
	QuestionCount    int        `json:"question_count"`
	Status           ExamStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title            string `json:"title" binding:"required,min=3,max=255"`
	ExamGroup        int    `json:"exam_group" binding:"min=0,max=64"`
	GroupOrder       int    `json:"group_order" binding:"required,min=1"`
	TimeLimitMinutes int    `json:"time_limit_minutes" binding:"required,min=1,max=480"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title            string `json:"title" binding:"omitempty,min=3,max=255"`
	ExamGroup        *int   `json:"exam_group" binding:"omitempty,min=0,max=64"`
	GroupOrder       *int   `json:"group_order" binding:"omitempty,min=1"`
	TimeLimitMinutes *int   `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	IsFreeExam       *bool  `json:"is_free_exam" binding:"omitempty"`
	FreeExamOrder    *int   `json:"free_exam_order" binding:"omitempty,min=1"`
}

// ExamPayload is the Redis-cached payload sent to students (no answer keys).
type ExamPayload struct {
	ExamID           uuid.UUID            `json:"exam_id"`
	Title            string               `json:"title"`
	ExamGroup        int                  `json:"exam_group"`
	GroupOrder       int                  `json:"group_order"`
	TimeLimitMinutes int                  `json:"time_limit_minutes"`
	Questions        []QuestionForStudent `json:"questions"`
}
