package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/bimbel-backend/internal/model"
)

const examColumns = `id, title, teacher_id, exam_group, group_order, time_limit_minutes,
	is_free_exam, free_exam_order, question_count, status, created_at, updated_at`

// ExamRepository handles exam data access. The question_count column is
// maintained by the question replace operation so listing never needs a
// join.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.TeacherID, &e.ExamGroup, &e.GroupOrder,
		&e.TimeLimitMinutes, &e.IsFreeExam, &e.FreeExamOrder, &e.QuestionCount,
		&e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// Create inserts a new exam. The (exam_group, group_order) pair is unique;
// a conflict surfaces as a constraint error for the service to translate.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, teacher_id, exam_group, group_order, time_limit_minutes, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.TeacherID, e.ExamGroup, e.GroupOrder, e.TimeLimitMinutes, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update rewrites the mutable exam fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, exam_group = $2, group_order = $3, time_limit_minutes = $4,
		     is_free_exam = $5, free_exam_order = $6, updated_at = NOW()
		 WHERE id = $7`,
		e.Title, e.ExamGroup, e.GroupOrder, e.TimeLimitMinutes,
		e.IsFreeExam, e.FreeExamOrder, e.ID)
	return err
}

// UpdateStatus changes only the authoring status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Delete removes an exam and (via FK cascades) its questions.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}

// GetSuccessor finds the next published exam in the same group, i.e. the
// exam at (group, order+1). Progression is a linear successor lookup, not
// a list traversal.
func (r *ExamRepository) GetSuccessor(ctx context.Context, examGroup, groupOrder int) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE exam_group = $1 AND group_order = $2 AND status = $3`,
		examGroup, groupOrder+1, model.ExamStatusPublished))
}

// GetFirstInGroup finds the published exam with group_order = 1.
func (r *ExamRepository) GetFirstInGroup(ctx context.Context, examGroup int) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE exam_group = $1 AND group_order = 1 AND status = $2`,
		examGroup, model.ExamStatusPublished))
}

// ListByGroup retrieves all published exams of a group in progression order.
func (r *ExamRepository) ListByGroup(ctx context.Context, examGroup int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE exam_group = $1 AND status = $2
		 ORDER BY group_order ASC`, examGroup, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

// ListPublished retrieves every published exam, grouped and ordered for
// lobby rendering and cache prewarming.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE status = $1
		 ORDER BY exam_group ASC, group_order ASC`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

// ListFreeExams retrieves published free exams in their display order.
func (r *ExamRepository) ListFreeExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE status = $1 AND is_free_exam
		 ORDER BY free_exam_order ASC NULLS LAST, created_at ASC`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

// ListByTeacherPaginated retrieves exams authored by a teacher.
func (r *ExamRepository) ListByTeacherPaginated(ctx context.Context, teacherID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE teacher_id = $1`, teacherID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE teacher_id = $1
		 ORDER BY exam_group ASC, group_order ASC
		 LIMIT $2 OFFSET $3`, teacherID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams, err := collectExams(rows)
	if err != nil {
		return nil, 0, err
	}
	return exams, total, nil
}

func collectExams(rows pgx.Rows) ([]model.Exam, error) {
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
