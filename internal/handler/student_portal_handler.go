package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/bimbel-backend/internal/middleware"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/progression"
	"github.com/stemsi/bimbel-backend/internal/response"
	"github.com/stemsi/bimbel-backend/internal/review"
	"github.com/stemsi/bimbel-backend/internal/scoring"
	"github.com/stemsi/bimbel-backend/internal/service"
	"github.com/stemsi/bimbel-backend/internal/validator"
)

// StudentPortalHandler handles the authenticated student surface: lobby,
// attempts, submissions, review attempts, and group views.
type StudentPortalHandler struct {
	progressionService *service.ProgressionService
	reviewService      *service.ReviewService
	groupService       *service.GroupService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	progressionService *service.ProgressionService,
	reviewService *service.ReviewService,
	groupService *service.GroupService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		progressionService: progressionService,
		reviewService:      reviewService,
		groupService:       groupService,
	}
}

// Lobby godoc
// GET /api/v1/student/lobby
// Returns every published exam grouped by exam group with the student's statuses.
func (h *StudentPortalHandler) Lobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	groups, err := h.progressionService.Lobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	type lobbyGroup struct {
		service.LobbyGroup
		CumulativePercentage *float64 `json:"cumulative_percentage,omitempty"`
	}
	out := make([]lobbyGroup, 0, len(groups))
	for _, g := range groups {
		lg := lobbyGroup{LobbyGroup: g}
		if pct, ok, err := h.groupService.Cumulative(c.Request.Context(), g.ExamGroup, claims.UserID); err == nil && ok {
			lg.CumulativePercentage = &pct
		}
		out = append(out, lg)
	}
	response.Success(c, http.StatusOK, gin.H{"groups": out})
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Opens (or resumes) an attempt and returns the exam payload.
func (h *StudentPortalHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.progressionService.StartExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failProgression(c, err)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// GetAttemptState godoc
// GET /api/v1/student/exams/:exam_id/state
// Returns the autosaved answers and remaining time for reload recovery.
func (h *StudentPortalHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.progressionService.AttemptState(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failProgression(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam_id/submit
// Grades the full answer sheet and completes the attempt.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
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

	summary, err := h.progressionService.SubmitExam(c.Request.Context(), examID, claims.UserID, &req)
	if err != nil {
		failProgression(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// GetProgress godoc
// GET /api/v1/student/exams/:exam_id/progress
// Returns the stored progression row including the review link.
func (h *StudentPortalHandler) GetProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	progress, err := h.progressionService.GetProgress(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failProgression(c, err)
		return
	}
	response.Success(c, http.StatusOK, progress)
}

// GetReviewExam godoc
// GET /api/v1/student/exams/:exam_id/review
// Returns the student's review exam for an original exam, if one exists.
func (h *StudentPortalHandler) GetReviewExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reviewExam, err := h.reviewService.GetByOriginal(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failReview(c, err)
		return
	}
	response.Success(c, http.StatusOK, reviewExam)
}

// NewReviewAttempt godoc
// POST /api/v1/student/reviews/:review_id/attempt
// Draws a fresh shuffle and returns the questions in presentation order.
func (h *StudentPortalHandler) NewReviewAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	reviewID, err := uuid.Parse(c.Param("review_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.reviewService.NewAttempt(c.Request.Context(), reviewID, claims.UserID)
	if err != nil {
		failReview(c, err)
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

// SubmitReviewAttempt godoc
// POST /api/v1/student/reviews/:review_id/submit
// Grades a review attempt and updates the monotonic counters.
func (h *StudentPortalHandler) SubmitReviewAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	reviewID, err := uuid.Parse(c.Param("review_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitReviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.reviewService.SubmitAttempt(c.Request.Context(), reviewID, claims.UserID, &req)
	if err != nil {
		failReview(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetGroupStatus godoc
// GET /api/v1/student/groups/:group/status
// Returns the derived group view: per-exam statuses and the unlock flag.
func (h *StudentPortalHandler) GetGroupStatus(c *gin.Context) {
	claims := middleware.GetClaims(c)
	group, err := strconv.Atoi(c.Param("group"))
	if err != nil || group < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	summary, err := h.groupService.Status(c.Request.Context(), group, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyGroup) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// GetGroupCumulative godoc
// GET /api/v1/student/groups/:group/cumulative
// Returns the question-count-weighted percentage across completed exams.
func (h *StudentPortalHandler) GetGroupCumulative(c *gin.Context) {
	claims := middleware.GetClaims(c)
	group, err := strconv.Atoi(c.Param("group"))
	if err != nil || group < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	pct, ok, err := h.groupService.Cumulative(c.Request.Context(), group, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	data := gin.H{"exam_group": group, "has_completed": ok}
	if ok {
		data["cumulative_percentage"] = pct
	}
	response.Success(c, http.StatusOK, data)
}

// failProgression translates state machine and grading errors to API codes.
func failProgression(c *gin.Context, err error) {
	switch {
	case errors.Is(err, progression.ErrExamLocked):
		response.Fail(c, http.StatusForbidden, response.ErrExamLocked)
	case errors.Is(err, progression.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotPublished)
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrTimeExpired),
		errors.Is(err, scoring.ErrAnswerCountMismatch),
		errors.Is(err, scoring.ErrInvalidAnswer):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidSubmission)
	case errors.Is(err, scoring.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrExamMisconfigured)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// failReview translates review flow errors to API codes.
func failReview(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoReviewExam):
		response.Fail(c, http.StatusNotFound, response.ErrNoReviewExam)
	case errors.Is(err, service.ErrNotReviewOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotReviewOwner)
	case errors.Is(err, service.ErrNoActiveAttempt):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveAttempt)
	case errors.Is(err, service.ErrShuffleMismatch), errors.Is(err, review.ErrBadOrder):
		response.Fail(c, http.StatusConflict, response.ErrShuffleMismatch)
	case errors.Is(err, scoring.ErrAnswerCountMismatch),
		errors.Is(err, scoring.ErrInvalidAnswer):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidSubmission)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
