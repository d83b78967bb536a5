package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/repository"
	"github.com/stemsi/bimbel-backend/internal/review"
	"github.com/stemsi/bimbel-backend/internal/scoring"
)

// Review attempt errors.
var (
	ErrNoReviewExam    = errors.New("no review exam for this student")
	ErrNotReviewOwner  = errors.New("review exam belongs to another student")
	ErrNoActiveAttempt = errors.New("no active review attempt, start one first")
	ErrShuffleMismatch = errors.New("presentation order does not match the active attempt")
)

// ReviewAttemptResult is the graded outcome of one review attempt together
// with the updated monotonic counters.
type ReviewAttemptResult struct {
	Summary        *scoring.ResultSummary `json:"summary"`
	TotalAttempts  int                    `json:"total_attempts"`
	BestPercentage float64                `json:"best_percentage"`
	NewBest        bool                   `json:"new_best"`
}

// ReviewService runs repeatable review attempts. The question set is
// frozen at generation; each attempt gets a fresh shuffle whose order
// lives only in Redis for the attempt's lifetime. The original exam's
// stored result is never touched — only best_percentage may rise.
type ReviewService struct {
	reviewRepo   *repository.ReviewRepository
	questionRepo *repository.QuestionRepository
	progressRepo *repository.ProgressRepository
	cfg          *config.Config
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(
	reviewRepo *repository.ReviewRepository,
	questionRepo *repository.QuestionRepository,
	progressRepo *repository.ProgressRepository,
	cfg *config.Config,
	rdb *redis.Client,
	log zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		reviewRepo:   reviewRepo,
		questionRepo: questionRepo,
		progressRepo: progressRepo,
		cfg:          cfg,
		rdb:          rdb,
		log:          log,
	}
}

// getOwned loads a review exam and checks ownership.
func (s *ReviewService) getOwned(ctx context.Context, reviewExamID uuid.UUID, studentID int) (*model.ReviewExam, error) {
	re, err := s.reviewRepo.GetByID(ctx, reviewExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoReviewExam
		}
		return nil, err
	}
	if re.StudentID != studentID {
		return nil, ErrNotReviewOwner
	}
	return re, nil
}

// GetByOriginal looks up the student's review exam for an original exam.
func (s *ReviewService) GetByOriginal(ctx context.Context, originalExamID uuid.UUID, studentID int) (*model.ReviewExam, error) {
	re, err := s.reviewRepo.GetByOriginal(ctx, originalExamID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoReviewExam
		}
		return nil, err
	}
	return re, nil
}

// NewAttempt opens a review attempt: draws a fresh shuffle over the frozen
// question set, stores it in Redis for the attempt window, and returns the
// questions in presentation order. Starting again before submitting simply
// replaces the pending shuffle.
func (s *ReviewService) NewAttempt(ctx context.Context, reviewExamID uuid.UUID, studentID int) (*model.ReviewAttemptStart, error) {
	re, err := s.getOwned(ctx, reviewExamID, studentID)
	if err != nil {
		return nil, err
	}

	questions, err := s.loadQuestions(ctx, re.ID)
	if err != nil {
		return nil, err
	}

	order := review.ShuffledOrder(len(questions))

	orderJSON, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	shuffleKey := config.CacheKey.ReviewShuffleKey(re.ID.String(), studentID)
	if err := s.rdb.Set(ctx, shuffleKey, orderJSON, s.cfg.ReviewAttemptTTL).Err(); err != nil {
		return nil, fmt.Errorf("store shuffle: %w", err)
	}

	presented := make([]model.QuestionForStudent, len(order))
	for i, canonicalIdx := range order {
		presented[i] = questions[canonicalIdx].ForStudent()
	}

	return &model.ReviewAttemptStart{
		ReviewExamID:      re.ID,
		Questions:         presented,
		PresentationOrder: order,
	}, nil
}

// SubmitAttempt grades a review attempt. The echoed presentation order
// must byte-match the one stored at start; answers are mapped back to
// canonical order before grading so the scoring path is identical to a
// normal exam. The counters update monotonically and the shuffle key is
// burned so the next attempt must draw a fresh one.
func (s *ReviewService) SubmitAttempt(ctx context.Context, reviewExamID uuid.UUID, studentID int, req *model.SubmitReviewRequest) (*ReviewAttemptResult, error) {
	re, err := s.getOwned(ctx, reviewExamID, studentID)
	if err != nil {
		return nil, err
	}

	shuffleKey := config.CacheKey.ReviewShuffleKey(re.ID.String(), studentID)
	storedJSON, err := s.rdb.Get(ctx, shuffleKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("get shuffle: %w", err)
	}

	var stored []int
	if err := json.Unmarshal([]byte(storedJSON), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal shuffle: %w", err)
	}
	if !equalOrder(stored, req.PresentationOrder) {
		return nil, ErrShuffleMismatch
	}

	questions, err := s.loadQuestions(ctx, re.ID)
	if err != nil {
		return nil, err
	}
	if !review.ValidOrder(stored, len(questions)) {
		return nil, ErrShuffleMismatch
	}

	canonical, err := review.CanonicalAnswers(toAnswerOptions(req.Answers), stored)
	if err != nil {
		return nil, err
	}

	summary, err := scoring.Grade(questions, canonical)
	if err != nil {
		return nil, err
	}

	prevBest := re.BestPercentage
	totalAttempts, bestPercentage, err := s.reviewRepo.RecordAttempt(ctx, re.ID, summary.Percentage)
	if err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	if err := s.progressRepo.UpdateBestReviewScore(ctx, re.ID, summary.Percentage); err != nil {
		s.log.Error().Err(err).Str("review_exam_id", re.ID.String()).
			Msg("update best review score on progress")
	}

	if err := s.rdb.Del(ctx, shuffleKey).Err(); err != nil {
		s.log.Warn().Err(err).Str("review_exam_id", re.ID.String()).Msg("burn shuffle key")
	}

	return &ReviewAttemptResult{
		Summary:        summary,
		TotalAttempts:  totalAttempts,
		BestPercentage: bestPercentage,
		NewBest:        bestPercentage > prevBest,
	}, nil
}

// loadQuestions fetches the frozen question set in canonical order.
func (s *ReviewService) loadQuestions(ctx context.Context, reviewExamID uuid.UUID) ([]model.Question, error) {
	ids, err := s.reviewRepo.QuestionIDs(ctx, reviewExamID)
	if err != nil {
		return nil, fmt.Errorf("list review question ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoReviewExam
	}
	questions, err := s.questionRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load review questions: %w", err)
	}
	return questions, nil
}

func equalOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
