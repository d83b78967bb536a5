package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/bimbel-backend/internal/model"
)

// ReviewRepository handles review exams and their frozen question sets.
// The review_questions table stores the canonical ordering fixed at
// generation time; per-attempt shuffles never touch it.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository creates a new ReviewRepository.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review exam together with its question set in one
// transaction. questionIDs must already be in canonical (original exam)
// order.
func (r *ReviewRepository) Create(ctx context.Context, review *model.ReviewExam, questionIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO review_exams (original_exam_id, student_id)
		 VALUES ($1, $2)
		 RETURNING id, total_attempts, best_percentage, created_at`,
		review.OriginalExamID, review.StudentID,
	).Scan(&review.ID, &review.TotalAttempts, &review.BestPercentage, &review.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review exam: %w", err)
	}

	for i, qid := range questionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO review_questions (review_exam_id, question_id, order_num)
			 VALUES ($1, $2, $3)`,
			review.ID, qid, i+1); err != nil {
			return fmt.Errorf("insert review question %d: %w", i+1, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a review exam.
func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReviewExam, error) {
	re := &model.ReviewExam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, original_exam_id, student_id, total_attempts, best_percentage, created_at
		 FROM review_exams WHERE id = $1`, id,
	).Scan(&re.ID, &re.OriginalExamID, &re.StudentID, &re.TotalAttempts,
		&re.BestPercentage, &re.CreatedAt)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// GetByOriginal retrieves the single review exam a student owns for one
// original exam.
func (r *ReviewRepository) GetByOriginal(ctx context.Context, originalExamID uuid.UUID, studentID int) (*model.ReviewExam, error) {
	re := &model.ReviewExam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, original_exam_id, student_id, total_attempts, best_percentage, created_at
		 FROM review_exams WHERE original_exam_id = $1 AND student_id = $2`,
		originalExamID, studentID,
	).Scan(&re.ID, &re.OriginalExamID, &re.StudentID, &re.TotalAttempts,
		&re.BestPercentage, &re.CreatedAt)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// QuestionIDs retrieves the frozen question IDs of a review exam in
// canonical order.
func (r *ReviewRepository) QuestionIDs(ctx context.Context, reviewExamID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM review_questions
		 WHERE review_exam_id = $1 ORDER BY order_num ASC`, reviewExamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan review question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordAttempt bumps the attempt counter and raises the best percentage
// if the new attempt beats it. Returns the updated counters.
func (r *ReviewRepository) RecordAttempt(ctx context.Context, reviewExamID uuid.UUID, percentage float64) (totalAttempts int, bestPercentage float64, err error) {
	err = r.pool.QueryRow(ctx,
		`UPDATE review_exams
		 SET total_attempts = total_attempts + 1,
		     best_percentage = GREATEST(best_percentage, $1)
		 WHERE id = $2
		 RETURNING total_attempts, best_percentage`,
		percentage, reviewExamID,
	).Scan(&totalAttempts, &bestPercentage)
	return totalAttempts, bestPercentage, err
}
