package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/notify"
	"github.com/stemsi/bimbel-backend/internal/progression"
	"github.com/stemsi/bimbel-backend/internal/repository"
	"github.com/stemsi/bimbel-backend/internal/review"
	"github.com/stemsi/bimbel-backend/internal/scoring"
)

// ErrTimeExpired is returned when a submission arrives after the attempt
// window closed.
var ErrTimeExpired = errors.New("attempt time limit has expired")

// submitGrace absorbs client clock skew and network latency on the final
// submit.
const submitGrace = 30 * time.Second

// ProgressionService drives the per-(student, exam) state machine. The
// pure rules live in the progression package; this service binds them to
// PostgreSQL rows and the Redis attempt state, and owns the completion
// side effects: cascade unlock, review generation, notification.
type ProgressionService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	progressRepo *repository.ProgressRepository
	reviewRepo   *repository.ReviewRepository
	examService  *ExamService
	rdb          *redis.Client
	bus          *notify.Bus
	log          zerolog.Logger
}

// NewProgressionService creates a new ProgressionService.
func NewProgressionService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	progressRepo *repository.ProgressRepository,
	reviewRepo *repository.ReviewRepository,
	examService *ExamService,
	rdb *redis.Client,
	bus *notify.Bus,
	log zerolog.Logger,
) *ProgressionService {
	return &ProgressionService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		progressRepo: progressRepo,
		reviewRepo:   reviewRepo,
		examService:  examService,
		rdb:          rdb,
		bus:          bus,
		log:          log,
	}
}

// currentStatus resolves the progression status for a (student, exam)
// pair. A missing row reads as locked.
func (s *ProgressionService) currentStatus(ctx context.Context, examID uuid.UUID, studentID int) (model.ProgressStatus, error) {
	p, err := s.progressRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ProgressStatusLocked, nil
		}
		return "", fmt.Errorf("get progress: %w", err)
	}
	return p.Status, nil
}

// StartExam opens (or resumes) an attempt. The first start stamps the
// attempt start time in Redis with SETNX so a reload never resets the
// clock, then moves the row to IN_PROGRESS. Returns the cached payload.
func (s *ProgressionService) StartExam(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamPayload, error) {
	status, err := s.currentStatus(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if err := progression.CanStart(status); err != nil {
		return nil, err
	}

	payload, err := s.examService.GetExamPayload(ctx, examID)
	if err != nil {
		return nil, err
	}

	startKey := config.CacheKey.AttemptStartKey(examID.String(), studentID)
	if err := s.rdb.SetNX(ctx, startKey,
		strconv.FormatInt(time.Now().Unix(), 10), 0).Err(); err != nil {
		return nil, fmt.Errorf("stamp attempt start: %w", err)
	}

	if status == model.ProgressStatusUnlocked {
		if err := s.progressRepo.MarkInProgress(ctx, examID, studentID); err != nil {
			return nil, fmt.Errorf("mark in progress: %w", err)
		}
	}

	return payload, nil
}

// AttemptState returns the reload-recovery view: autosaved answers and the
// remaining seconds, both from Redis.
func (s *ProgressionService) AttemptState(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptState, error) {
	status, err := s.currentStatus(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if err := progression.CanStart(status); err != nil {
		return nil, err
	}

	answers, err := s.rdb.HGetAll(ctx,
		config.CacheKey.StudentAnswersKey(examID.String(), studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	remaining, err := s.remainingSeconds(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	return &model.AttemptState{
		ExamID:           examID,
		StudentID:        studentID,
		AutosavedAnswers: answers,
		RemainingSeconds: remaining,
	}, nil
}

// remainingSeconds derives the attempt clock from the stamped start time
// and the cached exam duration. No start stamp means the full window is
// still available.
func (s *ProgressionService) remainingSeconds(ctx context.Context, examID uuid.UUID, studentID int) (float64, error) {
	durationStr, err := s.rdb.Get(ctx, config.CacheKey.ExamDurationKey(examID.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrExamNotPublished
		}
		return 0, fmt.Errorf("get exam duration: %w", err)
	}
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse exam duration: %w", err)
	}

	startStr, err := s.rdb.Get(ctx,
		config.CacheKey.AttemptStartKey(examID.String(), studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return duration, nil
		}
		return 0, fmt.Errorf("get attempt start: %w", err)
	}
	startUnix, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse attempt start: %w", err)
	}

	elapsed := time.Since(time.Unix(startUnix, 0)).Seconds()
	remaining := duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// SubmitExam grades a full answer sheet and completes the attempt. The
// conditional row update is the serialization point: with two concurrent
// submits exactly one commits, the other gets ErrAlreadyCompleted and no
// stored result changes. Cascade unlock, review generation, and the
// notification run after the commit; none of them can undo a completion.
func (s *ProgressionService) SubmitExam(ctx context.Context, examID uuid.UUID, studentID int, req *model.SubmitExamRequest) (*scoring.ResultSummary, error) {
	status, err := s.currentStatus(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if err := progression.CanSubmit(status); err != nil {
		return nil, err
	}

	remaining, err := s.remainingSeconds(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if remaining <= -submitGrace.Seconds() {
		return nil, ErrTimeExpired
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	summary, err := scoring.Grade(questions, toAnswerOptions(req.Answers))
	if err != nil {
		return nil, err
	}

	timeSpent := s.timeSpentSeconds(ctx, examID, studentID)
	submittedAt := time.Now()

	err = s.progressRepo.Complete(ctx, examID, studentID,
		summary.Score, summary.TotalQuestions, summary.Percentage, timeSpent, submittedAt)
	if err != nil {
		if errors.Is(err, repository.ErrNoTransition) {
			return nil, progression.ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("complete attempt: %w", err)
	}

	// Completion is durable from here on. The side effects below are
	// individually retried or logged, never rolled back.
	s.cascadeUnlock(ctx, examID, studentID)
	s.generateReviewExam(ctx, examID, studentID, summary)
	s.bus.ExamSubmitted(ctx, studentID, examID, summary.Percentage)
	s.clearAttemptState(ctx, examID, studentID)

	return summary, nil
}

// timeSpentSeconds reads the stamped start; a missing stamp (expired or
// flushed Redis) records zero rather than failing the submit.
func (s *ProgressionService) timeSpentSeconds(ctx context.Context, examID uuid.UUID, studentID int) int {
	startStr, err := s.rdb.Get(ctx,
		config.CacheKey.AttemptStartKey(examID.String(), studentID)).Result()
	if err != nil {
		return 0
	}
	startUnix, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return 0
	}
	return int(time.Since(time.Unix(startUnix, 0)).Seconds())
}

// cascadeUnlock moves the next exam of the group to unlocked. Completed
// and in-progress successors are left untouched.
func (s *ProgressionService) cascadeUnlock(ctx context.Context, examID uuid.UUID, studentID int) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("cascade: get exam")
		return
	}

	successor, err := s.examRepo.GetSuccessor(ctx, exam.ExamGroup, exam.GroupOrder)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("cascade: get successor")
		}
		return
	}

	succStatus, err := s.currentStatus(ctx, successor.ID, studentID)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", successor.ID.String()).Msg("cascade: get status")
		return
	}
	if !progression.CanCascadeUnlock(succStatus) {
		return
	}

	if _, err := s.progressRepo.EnsureUnlocked(ctx, successor.ID, studentID); err != nil &&
		!errors.Is(err, repository.ErrNoTransition) {
		s.log.Error().Err(err).Str("exam_id", successor.ID.String()).
			Int("student_id", studentID).Msg("cascade: unlock successor")
		return
	}

	s.log.Info().
		Str("completed_exam", examID.String()).
		Str("unlocked_exam", successor.ID.String()).
		Int("student_id", studentID).
		Msg("Cascade unlock")
}

// generateReviewExam builds the mistake-review exam on first completion.
// All-correct results get none; the review_exam_id link is written once
// and the IS NULL guard makes a duplicate generation a silent no-op.
func (s *ProgressionService) generateReviewExam(ctx context.Context, examID uuid.UUID, studentID int, summary *scoring.ResultSummary) {
	if summary.WrongAnswers+summary.Unanswered == 0 {
		return
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("review: list questions")
		return
	}

	selected, err := review.SelectQuestions(questions, summary.Details)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("review: select questions")
		return
	}
	if len(selected) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(selected))
	for i, q := range selected {
		ids[i] = q.ID
	}

	reviewExam := &model.ReviewExam{OriginalExamID: examID, StudentID: studentID}
	if err := s.reviewRepo.Create(ctx, reviewExam, ids); err != nil {
		s.log.Error().Err(err).Str("exam_id", examID.String()).
			Int("student_id", studentID).Msg("review: create")
		return
	}

	if err := s.progressRepo.SetReviewExam(ctx, examID, studentID, reviewExam.ID); err != nil &&
		!errors.Is(err, repository.ErrNoTransition) {
		s.log.Error().Err(err).Str("review_exam_id", reviewExam.ID.String()).
			Msg("review: link to progress")
	}
}

// clearAttemptState drops the autosave hash and start stamp. Best effort:
// a leftover key only wastes memory, it can never resurrect an attempt.
func (s *ProgressionService) clearAttemptState(ctx context.Context, examID uuid.UUID, studentID int) {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.StudentAnswersKey(examID.String(), studentID))
	pipe.Del(ctx, config.CacheKey.AttemptStartKey(examID.String(), studentID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).
			Int("student_id", studentID).Msg("clear attempt state")
	}
}

// GetProgress returns the full progression row, including the review link
// and best review score, for the student's result view.
func (s *ProgressionService) GetProgress(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamProgress, error) {
	p, err := s.progressRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, progression.ErrExamLocked
		}
		return nil, err
	}
	return p, nil
}

// ExamProgressList returns the per-student progression rows of one exam
// for the teacher's progress view.
func (s *ProgressionService) ExamProgressList(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.StudentProgress, int, error) {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrExamNotFound
		}
		return nil, 0, err
	}
	return s.progressRepo.ListByExamPaginated(ctx, examID, limit, offset)
}

// ExamStats returns completion aggregates of one exam across all students.
func (s *ProgressionService) ExamStats(ctx context.Context, examID uuid.UUID) (*model.ExamStats, error) {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return s.progressRepo.ExamStats(ctx, examID)
}

// LobbyGroup is one exam group in the student lobby, with derived group
// visibility and per-exam statuses.
type LobbyGroup struct {
	ExamGroup int                     `json:"exam_group"`
	Unlocked  bool                    `json:"unlocked"`
	Exams     []model.GroupExamStatus `json:"exams"`
}

// Lobby assembles the student's full map: every published exam grouped by
// exam group, each with the student's progression status. Missing rows
// read as locked; group visibility is derived on the fly.
func (s *ProgressionService) Lobby(ctx context.Context, studentID int) ([]LobbyGroup, error) {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published exams: %w", err)
	}

	progressByExam, err := s.progressRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	var groups []LobbyGroup
	for _, exam := range exams {
		status := model.ProgressStatusLocked
		var percentage *float64
		if p, ok := progressByExam[exam.ID]; ok {
			status = p.Status
			percentage = p.Percentage
		}

		entry := model.GroupExamStatus{
			ExamID:     exam.ID,
			Title:      exam.Title,
			GroupOrder: exam.GroupOrder,
			Status:     status,
			Percentage: percentage,
		}

		// ListPublished orders by (exam_group, group_order), so each group
		// is a contiguous run.
		if len(groups) == 0 || groups[len(groups)-1].ExamGroup != exam.ExamGroup {
			groups = append(groups, LobbyGroup{ExamGroup: exam.ExamGroup})
		}
		g := &groups[len(groups)-1]
		g.Exams = append(g.Exams, entry)
		if status != model.ProgressStatusLocked {
			g.Unlocked = true
		}
	}
	return groups, nil
}

// ─── Teacher overrides ──────────────────────────────────────────────────

// ToggleExam applies a teacher's open/close override to one (student,
// exam) pair. Guard refusals come back as an outcome with Applied=false
// instead of an error so bulk callers can aggregate them.
func (s *ProgressionService) ToggleExam(ctx context.Context, examID uuid.UUID, studentID int, action model.OverrideAction) (*model.ToggleOutcome, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	status, err := s.currentStatus(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	outcome := &model.ToggleOutcome{
		ExamID:     examID,
		GroupOrder: exam.GroupOrder,
		Status:     status,
	}

	next, err := progression.Override(status, action)
	if err != nil {
		if progression.IsGuardViolation(err) {
			outcome.Reason = err.Error()
			return outcome, nil
		}
		return nil, err
	}
	if next == status && action == model.OverrideClose && status == model.ProgressStatusLocked {
		// Closing an already-locked exam is a no-op, not a guard refusal.
		outcome.Applied = true
		return outcome, nil
	}

	switch action {
	case model.OverrideOpen:
		if _, err := s.progressRepo.EnsureUnlocked(ctx, examID, studentID); err != nil &&
			!errors.Is(err, repository.ErrNoTransition) {
			return nil, fmt.Errorf("apply open: %w", err)
		}
	case model.OverrideClose:
		if err := s.progressRepo.Close(ctx, examID, studentID); err != nil &&
			!errors.Is(err, repository.ErrNoTransition) {
			return nil, fmt.Errorf("apply close: %w", err)
		}
	}

	outcome.Applied = true
	outcome.Status = next
	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Str("action", string(action)).
		Str("status", string(next)).
		Msg("Progression override")
	return outcome, nil
}
