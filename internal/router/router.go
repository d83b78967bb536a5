package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/handler"
	"github.com/stemsi/bimbel-backend/internal/middleware"
	"github.com/stemsi/bimbel-backend/internal/response"
	"github.com/stemsi/bimbel-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Teacher       *handler.TeacherHandler
	Exam          *handler.ExamHandler
	Media         *handler.MediaHandler
	Public        *handler.PublicHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Serve uploaded media files statically with aggressive caching (1 year).
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", "./uploads")
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth and anonymous grading (30 requests per minute per IP).
	publicLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(publicLimiter.Middleware())
	{
		publicAPI.GET("/free-exams", handlers.Public.ListFreeExams)
		publicAPI.GET("/free-exams/:exam_id", handlers.Public.GetFreeExam)
		publicAPI.POST("/free-exams/:exam_id/grade", handlers.Public.GradeFreeExam)
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(publicLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/teacher/me", middleware.RequireTeacherJWT(authService), handlers.Auth.GetTeacherProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/lobby", handlers.StudentPortal.Lobby)

		studentAPI.POST("/exams/:exam_id/start", handlers.StudentPortal.StartExam)
		studentAPI.GET("/exams/:exam_id/state", handlers.StudentPortal.GetAttemptState)
		studentAPI.POST("/exams/:exam_id/submit", handlers.StudentPortal.SubmitExam)
		studentAPI.GET("/exams/:exam_id/progress", handlers.StudentPortal.GetProgress)
		studentAPI.GET("/exams/:exam_id/review", handlers.StudentPortal.GetReviewExam)

		studentAPI.POST("/reviews/:review_id/attempt", handlers.StudentPortal.NewReviewAttempt)
		studentAPI.POST("/reviews/:review_id/submit", handlers.StudentPortal.SubmitReviewAttempt)

		studentAPI.GET("/groups/:group/status", handlers.StudentPortal.GetGroupStatus)
		studentAPI.GET("/groups/:group/cumulative", handlers.StudentPortal.GetGroupCumulative)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.AttemptStream)
		ws.GET("/student/notifications", handlers.WS.NotificationStream)
	}

	// ─── 4. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		// Media upload
		teacherAPI.POST("/media/upload", handlers.Media.UploadMedia)

		// Student management
		teacherAPI.GET("/students", handlers.Teacher.ListStudents)
		teacherAPI.POST("/students", handlers.Teacher.CreateStudent)
		teacherAPI.PUT("/students/:id", handlers.Teacher.UpdateStudent)
		teacherAPI.DELETE("/students/:id", handlers.Teacher.DeleteStudent)
		teacherAPI.POST("/students/:id/reset-session", handlers.Teacher.ResetStudentSession)

		// Progression overrides and views
		teacherAPI.POST("/students/:id/exams/:exam_id/toggle", handlers.Teacher.ToggleExam)
		teacherAPI.POST("/students/:id/groups/:group/toggle", handlers.Teacher.ToggleGroup)
		teacherAPI.GET("/students/:id/groups/:group/status", handlers.Teacher.GetStudentGroupStatus)
		teacherAPI.GET("/students/:id/progress", handlers.Teacher.StudentProgress)

		// Exam authoring
		teacherAPI.GET("/exams", handlers.Exam.List)
		teacherAPI.POST("/exams", handlers.Exam.Create)
		teacherAPI.GET("/exams/:exam_id", handlers.Exam.Get)
		teacherAPI.PUT("/exams/:exam_id", handlers.Exam.Update)
		teacherAPI.DELETE("/exams/:exam_id", handlers.Exam.Delete)
		teacherAPI.GET("/exams/:exam_id/questions", handlers.Exam.ListQuestions)
		teacherAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)
		teacherAPI.POST("/exams/:exam_id/publish", handlers.Exam.Publish)
		teacherAPI.POST("/exams/:exam_id/archive", handlers.Exam.Archive)
		teacherAPI.GET("/exams/:exam_id/progress", handlers.Exam.Progress)
		teacherAPI.GET("/exams/:exam_id/stats", handlers.Exam.Stats)

		// Dashboard and live feed
		teacherAPI.GET("/dashboard", handlers.Teacher.Dashboard)
		teacherAPI.GET("/feed", handlers.Teacher.Feed)
	}

	return router
}
