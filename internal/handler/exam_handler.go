package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/bimbel-backend/internal/middleware"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/response"
	"github.com/stemsi/bimbel-backend/internal/service"
	"github.com/stemsi/bimbel-backend/internal/validator"
)

// ExamHandler handles exam authoring: CRUD, question sets, publishing,
// and the per-exam progress views.
type ExamHandler struct {
	examService        *service.ExamService
	progressionService *service.ProgressionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, progressionService *service.ProgressionService) *ExamHandler {
	return &ExamHandler{examService: examService, progressionService: progressionService}
}

// Create godoc
// POST /api/v1/teacher/exams
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

// List godoc
// GET /api/v1/teacher/exams?page=&per_page=
func (h *ExamHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage := paginationParams(c)

	exams, total, err := h.examService.ListByTeacher(c.Request.Context(), claims.UserID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, exams, buildPagination(page, perPage, total))
}

// Get godoc
// GET /api/v1/teacher/exams/:exam_id
func (h *ExamHandler) Get(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Update godoc
// PUT /api/v1/teacher/exams/:exam_id
func (h *ExamHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), examID, claims.UserID, &req)
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Delete godoc
// DELETE /api/v1/teacher/exams/:exam_id
func (h *ExamHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID, claims.UserID); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/exams/:exam_id/questions
// Swaps the full question set of a draft exam.
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.ReplaceQuestions(c.Request.Context(), examID, claims.UserID, &req); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_count": len(req.Questions)})
}

// ListQuestions godoc
// GET /api/v1/teacher/exams/:exam_id/questions
// Returns the full questions including answer keys and explanations.
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.examService.ListQuestions(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// Publish godoc
// POST /api/v1/teacher/exams/:exam_id/publish
func (h *ExamHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Publish(c.Request.Context(), examID, claims.UserID); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": model.ExamStatusPublished})
}

// Archive godoc
// POST /api/v1/teacher/exams/:exam_id/archive
func (h *ExamHandler) Archive(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Archive(c.Request.Context(), examID, claims.UserID); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": model.ExamStatusArchived})
}

// Progress godoc
// GET /api/v1/teacher/exams/:exam_id/progress?page=&per_page=
// The per-student progression rows of one exam.
func (h *ExamHandler) Progress(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	page, perPage := paginationParams(c)

	list, total, err := h.progressionService.ExamProgressList(c.Request.Context(), examID, perPage, (page-1)*perPage)
	if err != nil {
		failExam(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, list, buildPagination(page, perPage, total))
}

// Stats godoc
// GET /api/v1/teacher/exams/:exam_id/stats
// Completion counts and score average across all students.
func (h *ExamHandler) Stats(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stats, err := h.progressionService.ExamStats(c.Request.Context(), examID)
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// failExam translates exam authoring errors to API codes.
func failExam(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotExamAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamAuthor)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrExamNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrExamMisconfigured)
	case errors.Is(err, service.ErrDuplicateOrder):
		response.Fail(c, http.StatusConflict, response.ErrDuplicateOrder)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
