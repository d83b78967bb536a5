package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/bimbel-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves the questions of an exam in canonical order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, image_path, correct_answer, explanation, order_num
		 FROM questions WHERE exam_id = $1 ORDER BY order_num ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// ListByIDs retrieves questions by ID, returned in the order the IDs were
// given. Review exams rely on this to preserve their frozen ordering.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.exam_id, q.image_path, q.correct_answer, q.explanation, q.order_num
		 FROM questions q
		 JOIN unnest($1::uuid[]) WITH ORDINALITY AS want(id, pos) ON want.id = q.id
		 ORDER BY want.pos`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}
	if len(questions) != len(ids) {
		return nil, fmt.Errorf("expected %d questions, found %d", len(ids), len(questions))
	}
	return questions, nil
}

// ReplaceAll swaps the full question set of an exam in one transaction and
// refreshes the exam's question_count. Only draft exams should reach here;
// the service enforces that.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, examID uuid.UUID, questions []model.AddQuestionRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("delete old questions: %w", err)
	}

	for i, q := range questions {
		_, err := tx.Exec(ctx,
			`INSERT INTO questions (exam_id, image_path, correct_answer, explanation, order_num)
			 VALUES ($1, $2, $3, $4, $5)`,
			examID, q.ImagePath, q.CorrectAnswer, q.Explanation, i+1)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exams SET question_count = $1, updated_at = NOW() WHERE id = $2`,
		len(questions), examID); err != nil {
		return fmt.Errorf("update question count: %w", err)
	}

	return tx.Commit(ctx)
}

// CountByExam returns the number of questions in an exam.
func (r *QuestionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE exam_id = $1`, examID).Scan(&count)
	return count, err
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.ImagePath, &q.CorrectAnswer,
			&q.Explanation, &q.OrderNum); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
