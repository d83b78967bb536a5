package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/middleware"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/notify"
	"github.com/stemsi/bimbel-backend/internal/response"
	"github.com/stemsi/bimbel-backend/internal/service"
	"github.com/stemsi/bimbel-backend/internal/validator"
)

const feedKeepAliveInterval = 30 * time.Second

// TeacherHandler handles the teacher surface: student accounts,
// progression overrides, progress views, the dashboard, and the live feed.
type TeacherHandler struct {
	rdb                *redis.Client
	studentService     *service.StudentService
	progressionService *service.ProgressionService
	groupService       *service.GroupService
	dashboardService   *service.DashboardService
	log                zerolog.Logger
}

// NewTeacherHandler creates a new TeacherHandler.
func NewTeacherHandler(
	rdb *redis.Client,
	studentService *service.StudentService,
	progressionService *service.ProgressionService,
	groupService *service.GroupService,
	dashboardService *service.DashboardService,
	log zerolog.Logger,
) *TeacherHandler {
	return &TeacherHandler{
		rdb:                rdb,
		studentService:     studentService,
		progressionService: progressionService,
		groupService:       groupService,
		dashboardService:   dashboardService,
		log:                log.With().Str("component", "teacher_handler").Logger(),
	}
}

// ─── Student accounts ───────────────────────────────────────────────────

// CreateStudent godoc
// POST /api/v1/teacher/students
func (h *TeacherHandler) CreateStudent(c *gin.Context) {
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrNISNTaken) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, student)
}

// ListStudents godoc
// GET /api/v1/teacher/students?page=&per_page=
func (h *TeacherHandler) ListStudents(c *gin.Context) {
	page, perPage := paginationParams(c)

	students, total, err := h.studentService.List(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, students, buildPagination(page, perPage, total))
}

// UpdateStudent godoc
// PUT /api/v1/teacher/students/:id
func (h *TeacherHandler) UpdateStudent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, student)
}

// DeleteStudent godoc
// DELETE /api/v1/teacher/students/:id
func (h *TeacherHandler) DeleteStudent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.studentService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ResetStudentSession godoc
// POST /api/v1/teacher/students/:id/reset-session
func (h *TeacherHandler) ResetStudentSession(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.studentService.ResetSession(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ─── Progression overrides ──────────────────────────────────────────────

// ToggleExam godoc
// POST /api/v1/teacher/students/:id/exams/:exam_id/toggle
// Applies an open/close override to one (student, exam) pair. Guard
// refusals come back as 200 with applied=false and the reason.
func (h *TeacherHandler) ToggleExam(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ToggleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcome, err := h.progressionService.ToggleExam(c.Request.Context(), examID, studentID, req.Action)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// ToggleGroup godoc
// POST /api/v1/teacher/students/:id/groups/:group/toggle
// Applies an open/close override to every published exam of a group.
func (h *TeacherHandler) ToggleGroup(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	group, err := strconv.Atoi(c.Param("group"))
	if err != nil || group < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ToggleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcomes, err := h.groupService.Toggle(c.Request.Context(), group, studentID, req.Action)
	if err != nil {
		if errors.Is(err, service.ErrEmptyGroup) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"outcomes": outcomes})
}

// GetStudentGroupStatus godoc
// GET /api/v1/teacher/students/:id/groups/:group/status
// The teacher's view of one student's group, same shape the student sees.
func (h *TeacherHandler) GetStudentGroupStatus(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	group, err := strconv.Atoi(c.Param("group"))
	if err != nil || group < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	summary, err := h.groupService.Status(c.Request.Context(), group, studentID)
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

// StudentProgress godoc
// GET /api/v1/teacher/students/:id/progress
// One student's full map: every group with per-exam statuses plus the
// group's cumulative percentage where at least one exam is completed.
func (h *TeacherHandler) StudentProgress(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.studentService.GetByID(c.Request.Context(), studentID); err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	groups, err := h.progressionService.Lobby(c.Request.Context(), studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	type groupProgress struct {
		service.LobbyGroup
		CumulativePercentage *float64 `json:"cumulative_percentage,omitempty"`
	}
	out := make([]groupProgress, 0, len(groups))
	for _, g := range groups {
		gp := groupProgress{LobbyGroup: g}
		if pct, ok, err := h.groupService.Cumulative(c.Request.Context(), g.ExamGroup, studentID); err == nil && ok {
			gp.CumulativePercentage = &pct
		}
		out = append(out, gp)
	}
	response.Success(c, http.StatusOK, gin.H{"student_id": studentID, "groups": out})
}

// ─── Dashboard and live feed ────────────────────────────────────────────

// Dashboard godoc
// GET /api/v1/teacher/dashboard
func (h *TeacherHandler) Dashboard(c *gin.Context) {
	data, err := h.dashboardService.GetDashboardData(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, data)
}

// Feed godoc
// GET /api/v1/teacher/feed
// SSE stream of the shared teacher room: submissions and roster changes.
// EventSource cannot send headers, so the JWT may arrive as ?token=.
func (h *TeacherHandler) Feed(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	channel := config.CacheKey.RoomChannel(notify.TeacherRoom())
	pubsub := h.rdb.Subscribe(reqCtx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(feedKeepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Int("teacher_id", claims.UserID).Msg("Teacher attached to live feed")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Int("teacher_id", claims.UserID).Msg("Teacher disconnected from live feed")
			return

		case msg := <-ch:
			// Forward raw JSON directly — no deserialization needed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: {\"type\":\"ping\"}\n\n"))
			c.Writer.Flush()
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────

func paginationParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func buildPagination(page, perPage, total int) *response.Pagination {
	totalPages := (total + perPage - 1) / perPage
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
