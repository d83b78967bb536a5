package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/bimbel-backend/internal/model"
)

// DashboardRecentSubmission is one row of the dashboard's recent
// completions feed.
type DashboardRecentSubmission struct {
	StudentID   int       `json:"student_id"`
	StudentName string    `json:"student_name"`
	ExamID      uuid.UUID `json:"exam_id"`
	ExamTitle   string    `json:"exam_title"`
	Percentage  float64   `json:"percentage"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DashboardRepository aggregates cross-table metrics for the teacher
// dashboard.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// SummaryCounts returns the headline totals.
func (r *DashboardRepository) SummaryCounts(ctx context.Context) (students, exams, questions, reviews int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM students),
		   (SELECT COUNT(*) FROM exams),
		   (SELECT COUNT(*) FROM questions),
		   (SELECT COUNT(*) FROM review_exams)`,
	).Scan(&students, &exams, &questions, &reviews)
	return
}

// ExamStatusCounts returns exam counts grouped by authoring status.
func (r *DashboardRepository) ExamStatusCounts(ctx context.Context) (map[model.ExamStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM exams GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ExamStatus]int)
	for rows.Next() {
		var status model.ExamStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RecentSubmissions returns the latest completed attempts across all exams.
func (r *DashboardRepository) RecentSubmissions(ctx context.Context, limit int) ([]DashboardRecentSubmission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, e.id, e.title, ep.percentage, ep.submitted_at
		 FROM exam_progress ep
		 JOIN students s ON s.id = ep.student_id
		 JOIN exams e ON e.id = ep.exam_id
		 WHERE ep.status = $1 AND ep.submitted_at IS NOT NULL
		 ORDER BY ep.submitted_at DESC
		 LIMIT $2`, model.ProgressStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []DashboardRecentSubmission
	for rows.Next() {
		var sub DashboardRecentSubmission
		if err := rows.Scan(&sub.StudentID, &sub.StudentName, &sub.ExamID,
			&sub.ExamTitle, &sub.Percentage, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan recent submission: %w", err)
		}
		list = append(list, sub)
	}
	return list, rows.Err()
}
