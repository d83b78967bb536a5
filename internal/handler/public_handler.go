package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/response"
	"github.com/stemsi/bimbel-backend/internal/scoring"
	"github.com/stemsi/bimbel-backend/internal/service"
	"github.com/stemsi/bimbel-backend/internal/validator"
)

// PublicHandler serves the anonymous free-exam pipeline. No account, no
// session, no persistence: grade and forget.
type PublicHandler struct {
	examService *service.ExamService
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(examService *service.ExamService) *PublicHandler {
	return &PublicHandler{examService: examService}
}

// ListFreeExams godoc
// GET /api/v1/public/free-exams
func (h *PublicHandler) ListFreeExams(c *gin.Context) {
	exams, err := h.examService.ListFreeExams(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetFreeExam godoc
// GET /api/v1/public/free-exams/:exam_id
// Returns the cached payload (questions without answer keys).
func (h *PublicHandler) GetFreeExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil || !exam.IsFreeExam || exam.Status != model.ExamStatusPublished {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	payload, err := h.examService.GetExamPayload(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotPublished)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// GradeFreeExam godoc
// POST /api/v1/public/free-exams/:exam_id/grade
// Grades a full anonymous answer sheet and returns the result with
// explanations. Nothing is stored.
func (h *PublicHandler) GradeFreeExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	summary, err := h.examService.GradeFreeAttempt(c.Request.Context(), examID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrNotFreeExam):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, scoring.ErrAnswerCountMismatch), errors.Is(err, scoring.ErrInvalidAnswer):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidSubmission)
		case errors.Is(err, scoring.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrExamMisconfigured)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, summary)
}
