package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/progression"
)

// ErrNoTransition is returned when a conditional status update matched no
// row, meaning the row's current status forbids the transition. Callers
// re-read the row to report the actual state.
var ErrNoTransition = errors.New("progress status forbids this transition")

const progressColumns = `id, exam_id, student_id, status, score, total_questions,
	percentage, time_spent_seconds, submitted_at, review_exam_id, best_review_score,
	created_at, updated_at`

// ProgressRepository handles per-student exam progression rows. Every
// status change goes through a conditional UPDATE so concurrent writers
// serialize on the row: the loser matches zero rows and gets
// ErrNoTransition instead of overwriting a completed result.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

func scanProgress(row pgx.Row) (*model.ExamProgress, error) {
	p := &model.ExamProgress{}
	err := row.Scan(&p.ID, &p.ExamID, &p.StudentID, &p.Status, &p.Score,
		&p.TotalQuestions, &p.Percentage, &p.TimeSpentSeconds, &p.SubmittedAt,
		&p.ReviewExamID, &p.BestReviewScore, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByExamAndStudent retrieves one progression row. A missing row means
// the exam is locked for that student.
func (r *ProgressRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamProgress, error) {
	return scanProgress(r.pool.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM exam_progress
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID))
}

// EnsureUnlocked moves a row to UNLOCKED, creating it if absent. Rows that
// already completed or are mid-attempt are left alone: the upsert's WHERE
// guard makes it a no-op for them and the caller receives ErrNoTransition
// together with the untouched row.
func (r *ProgressRepository) EnsureUnlocked(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamProgress, error) {
	p, err := scanProgress(r.pool.QueryRow(ctx,
		`INSERT INTO exam_progress (exam_id, student_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id) DO UPDATE
		 SET status = $3, updated_at = NOW()
		 WHERE exam_progress.status IN ($4, $3)
		 RETURNING `+progressColumns,
		examID, studentID, model.ProgressStatusUnlocked, model.ProgressStatusLocked))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Guard rejected the update. Surface the row as it stands.
	current, getErr := r.GetByExamAndStudent(ctx, examID, studentID)
	if getErr != nil {
		return nil, getErr
	}
	return current, ErrNoTransition
}

// MarkInProgress records that the student opened the exam. Only an
// UNLOCKED row transitions; repeat opens while IN_PROGRESS are no-ops.
func (r *ProgressRepository) MarkInProgress(ctx context.Context, examID uuid.UUID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_progress SET status = $1, updated_at = NOW()
		 WHERE exam_id = $2 AND student_id = $3 AND status = $4`,
		model.ProgressStatusInProgress, examID, studentID, model.ProgressStatusUnlocked)
	return err
}

// Complete finalizes an attempt with its graded result. The WHERE clause
// is the serialization point: only the first submitter matches a row, any
// later writer sees zero rows affected and gets ErrNoTransition.
func (r *ProgressRepository) Complete(ctx context.Context, examID uuid.UUID, studentID int, score, totalQuestions int, percentage float64, timeSpentSeconds int, submittedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_progress
		 SET status = $1, score = $2, total_questions = $3, percentage = $4,
		     time_spent_seconds = $5, submitted_at = $6, updated_at = NOW()
		 WHERE exam_id = $7 AND student_id = $8 AND status IN ($9, $10)`,
		model.ProgressStatusCompleted, score, totalQuestions, percentage,
		timeSpentSeconds, submittedAt, examID, studentID,
		model.ProgressStatusUnlocked, model.ProgressStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoTransition
	}
	return nil
}

// Close re-locks an exam for a student. Completed rows and live attempts
// are protected by the status guard.
func (r *ProgressRepository) Close(ctx context.Context, examID uuid.UUID, studentID int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_progress SET status = $1, updated_at = NOW()
		 WHERE exam_id = $2 AND student_id = $3 AND status IN ($4, $1)`,
		model.ProgressStatusLocked, examID, studentID, model.ProgressStatusUnlocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoTransition
	}
	return nil
}

// SetReviewExam links the generated review exam to the progression row.
// The IS NULL guard keeps the link stable: a review exam is generated once
// per student per exam, on first completion.
func (r *ProgressRepository) SetReviewExam(ctx context.Context, examID uuid.UUID, studentID int, reviewExamID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_progress SET review_exam_id = $1, updated_at = NOW()
		 WHERE exam_id = $2 AND student_id = $3 AND review_exam_id IS NULL`,
		reviewExamID, examID, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoTransition
	}
	return nil
}

// UpdateBestReviewScore raises the recorded best review percentage. The
// GREATEST keeps it monotonic even if attempts land out of order.
func (r *ProgressRepository) UpdateBestReviewScore(ctx context.Context, reviewExamID uuid.UUID, percentage float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_progress
		 SET best_review_score = GREATEST(COALESCE(best_review_score, 0), $1), updated_at = NOW()
		 WHERE review_exam_id = $2`,
		percentage, reviewExamID)
	return err
}

// ListByStudent retrieves every progression row of a student keyed by exam
// ID, for lobby assembly.
func (r *ProgressRepository) ListByStudent(ctx context.Context, studentID int) (map[uuid.UUID]model.ExamProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM exam_progress WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byExam := make(map[uuid.UUID]model.ExamProgress)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		byExam[p.ExamID] = *p
	}
	return byExam, rows.Err()
}

// GroupStatuses retrieves a student's progression rows for one exam group
// in progression order, one entry per published exam. Exams without a row
// yet appear with a nil progress.
func (r *ProgressRepository) GroupStatuses(ctx context.Context, examGroup, studentID int) ([]model.GroupExamStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, e.group_order, ep.status, ep.percentage
		 FROM exams e
		 LEFT JOIN exam_progress ep ON ep.exam_id = e.id AND ep.student_id = $2
		 WHERE e.exam_group = $1 AND e.status = $3
		 ORDER BY e.group_order ASC`,
		examGroup, studentID, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []model.GroupExamStatus
	for rows.Next() {
		var s model.GroupExamStatus
		var status *model.ProgressStatus
		if err := rows.Scan(&s.ExamID, &s.Title, &s.GroupOrder, &status, &s.Percentage); err != nil {
			return nil, fmt.Errorf("scan group status: %w", err)
		}
		if status != nil {
			s.Status = *status
		} else {
			s.Status = model.ProgressStatusLocked
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// CompletedResults retrieves the scores of a student's completed exams in
// one group, for the cumulative percentage.
func (r *ProgressRepository) CompletedResults(ctx context.Context, examGroup, studentID int) ([]progression.CompletedResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ep.score, ep.total_questions
		 FROM exam_progress ep
		 JOIN exams e ON e.id = ep.exam_id
		 WHERE e.exam_group = $1 AND ep.student_id = $2 AND ep.status = $3`,
		examGroup, studentID, model.ProgressStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []progression.CompletedResult
	for rows.Next() {
		var res progression.CompletedResult
		if err := rows.Scan(&res.Score, &res.TotalQuestions); err != nil {
			return nil, fmt.Errorf("scan completed result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ExamStats aggregates completion counts and the score average of one exam
// across all students, for the teacher dashboard.
func (r *ProgressRepository) ExamStats(ctx context.Context, examID uuid.UUID) (*model.ExamStats, error) {
	s := &model.ExamStats{ExamID: examID}
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE status = $2),
		   COUNT(*) FILTER (WHERE status = $3),
		   COALESCE(AVG(percentage) FILTER (WHERE status = $3), 0)
		 FROM exam_progress WHERE exam_id = $1`,
		examID, model.ProgressStatusInProgress, model.ProgressStatusCompleted,
	).Scan(&s.InProgressCount, &s.CompletedCount, &s.AveragePercentage)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByExamPaginated retrieves the progression rows of one exam together
// with student identity, for the teacher's per-exam progress view.
func (r *ProgressRepository) ListByExamPaginated(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.StudentProgress, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_progress WHERE exam_id = $1`, examID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.nisn, s.name, ep.status, ep.score, ep.total_questions,
		        ep.percentage, ep.time_spent_seconds, ep.submitted_at, ep.best_review_score
		 FROM exam_progress ep
		 JOIN students s ON s.id = ep.student_id
		 WHERE ep.exam_id = $1
		 ORDER BY s.name ASC
		 LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []model.StudentProgress
	for rows.Next() {
		var sp model.StudentProgress
		if err := rows.Scan(&sp.StudentID, &sp.NISN, &sp.Name, &sp.Status, &sp.Score,
			&sp.TotalQuestions, &sp.Percentage, &sp.TimeSpentSeconds,
			&sp.SubmittedAt, &sp.BestReviewScore); err != nil {
			return nil, 0, fmt.Errorf("scan student progress: %w", err)
		}
		list = append(list, sp)
	}
	return list, total, rows.Err()
}
