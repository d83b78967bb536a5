package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/repository"
	"github.com/stemsi/bimbel-backend/internal/scoring"
)

// Exam authoring errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrNotExamAuthor    = errors.New("not the author of this exam")
	ErrExamNotDraft     = errors.New("exam is not a draft")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrNoQuestions      = errors.New("exam has no questions")
	ErrDuplicateOrder   = errors.New("group order already taken in this exam group")
	ErrNotFreeExam      = errors.New("exam is not a free exam")
)

const pgUniqueViolation = "23505"

// ExamService handles exam authoring and the published-exam cache. Student
// attempts read payloads from Redis; publishing and question edits are the
// only writers of that cache.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{examRepo: examRepo, questionRepo: questionRepo, rdb: rdb, log: log}
}

// GetByID retrieves one exam.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return exam, nil
}

// Create inserts a new exam as DRAFT.
func (s *ExamService) Create(ctx context.Context, teacherID int, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Title:            req.Title,
		TeacherID:        teacherID,
		ExamGroup:        req.ExamGroup,
		GroupOrder:       req.GroupOrder,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Status:           model.ExamStatusDraft,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateOrder
		}
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// Update modifies exam metadata. Only the author may edit, and the group
// slot must stay unique.
func (s *ExamService) Update(ctx context.Context, examID uuid.UUID, teacherID int, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.getOwned(ctx, examID, teacherID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.ExamGroup != nil {
		exam.ExamGroup = *req.ExamGroup
	}
	if req.GroupOrder != nil {
		exam.GroupOrder = *req.GroupOrder
	}
	if req.TimeLimitMinutes != nil {
		exam.TimeLimitMinutes = *req.TimeLimitMinutes
	}
	if req.IsFreeExam != nil {
		exam.IsFreeExam = *req.IsFreeExam
	}
	if req.FreeExamOrder != nil {
		exam.FreeExamOrder = req.FreeExamOrder
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateOrder
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}

	// A published exam's payload carries title and time limit; keep the
	// cache in step.
	if exam.Status == model.ExamStatusPublished {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("rewarm after update")
		}
	}
	return exam, nil
}

// Delete removes a draft or archived exam. Published exams must be
// archived first so progression rows never point at a vanished exam.
func (s *ExamService) Delete(ctx context.Context, examID uuid.UUID, teacherID int) error {
	exam, err := s.getOwned(ctx, examID, teacherID)
	if err != nil {
		return err
	}
	if exam.Status == model.ExamStatusPublished {
		return ErrExamNotDraft
	}
	return s.examRepo.Delete(ctx, examID)
}

// ReplaceQuestions swaps the full question set of a draft exam.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, teacherID int, req *model.ReplaceQuestionsRequest) error {
	exam, err := s.getOwned(ctx, examID, teacherID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.questionRepo.ReplaceAll(ctx, examID, req.Questions)
}

// ListQuestions retrieves an exam's full questions including answer keys,
// for the authoring view.
func (s *ExamService) ListQuestions(ctx context.Context, examID uuid.UUID, teacherID int) ([]model.Question, error) {
	if _, err := s.getOwned(ctx, examID, teacherID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByExam(ctx, examID)
}

// ListByTeacher retrieves a teacher's exams with pagination.
func (s *ExamService) ListByTeacher(ctx context.Context, teacherID, limit, offset int) ([]model.Exam, int, error) {
	return s.examRepo.ListByTeacherPaginated(ctx, teacherID, limit, offset)
}

// Publish moves a draft exam to PUBLISHED and warms the payload cache.
// An exam without questions cannot be published.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, teacherID int) error {
	exam, err := s.getOwned(ctx, examID, teacherID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// Archive retires a published exam. Completed results stay intact; the
// cached payload is dropped so no new attempt can start.
func (s *ExamService) Archive(ctx context.Context, examID uuid.UUID, teacherID int) error {
	exam, err := s.getOwned(ctx, examID, teacherID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusPublished {
		return ErrExamNotPublished
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.ExamPayloadKey(examID.String()))
	pipe.Del(ctx, config.CacheKey.ExamDurationKey(examID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("drop cache on archive")
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam archived")
	return nil
}

// WarmExamCache loads an exam's student payload and time limit from
// PostgreSQL into Redis. Used by Publish, question edits, and startup
// prewarming.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	studentQuestions := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		studentQuestions[i] = q.ForStudent()
	}

	payload := model.ExamPayload{
		ExamID:           exam.ID,
		Title:            exam.Title,
		ExamGroup:        exam.ExamGroup,
		GroupOrder:       exam.GroupOrder,
		TimeLimitMinutes: exam.TimeLimitMinutes,
		Questions:        studentQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID.String()), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(exam.ID.String()),
		strconv.Itoa(exam.TimeLimitMinutes*60), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
// This prevents any lazy-loading race conditions under thundering herd traffic.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming published exams...")

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPayload retrieves the cached student payload from Redis.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExamNotPublished
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// ─── Free exams ─────────────────────────────────────────────────────────

// ListFreeExams retrieves the published free exams for the anonymous
// pipeline, in display order.
func (s *ExamService) ListFreeExams(ctx context.Context) ([]model.Exam, error) {
	return s.examRepo.ListFreeExams(ctx)
}

// GradeFreeAttempt grades an anonymous free-exam submission without
// touching any state. Nothing is stored; the caller gets the full result
// including per-question detail and explanations.
func (s *ExamService) GradeFreeAttempt(ctx context.Context, examID uuid.UUID, answers []string) (*scoring.ResultSummary, error) {
	exam, err := s.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsFreeExam || exam.Status != model.ExamStatusPublished {
		return nil, ErrNotFreeExam
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return scoring.Grade(questions, toAnswerOptions(answers))
}

func (s *ExamService) getOwned(ctx context.Context, examID uuid.UUID, teacherID int) (*model.Exam, error) {
	exam, err := s.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.TeacherID != teacherID {
		return nil, ErrNotExamAuthor
	}
	return exam, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// toAnswerOptions converts a raw request answer sheet. Validation of the
// letters happens in the binding layer and again inside grading.
func toAnswerOptions(answers []string) []model.AnswerOption {
	out := make([]model.AnswerOption, len(answers))
	for i, a := range answers {
		out[i] = model.AnswerOption(a)
	}
	return out
}
