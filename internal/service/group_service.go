package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/progression"
	"github.com/stemsi/bimbel-backend/internal/repository"
)

// ErrEmptyGroup is returned when a group has no published exams.
var ErrEmptyGroup = errors.New("exam group has no published exams")

// GroupSummary is the derived view of one exam group for one student.
// Unlocked is never stored: it is recomputed from the per-exam statuses on
// every read.
type GroupSummary struct {
	ExamGroup            int                     `json:"exam_group"`
	Unlocked             bool                    `json:"unlocked"`
	Exams                []model.GroupExamStatus `json:"exams"`
	CompletedCount       int                     `json:"completed_count"`
	CumulativePercentage *float64                `json:"cumulative_percentage,omitempty"`
}

// GroupService answers group-level questions: derived group status,
// cumulative percentage, and bulk per-group overrides. Groups have no row
// of their own anywhere; everything here is computed from exam progression
// rows.
type GroupService struct {
	examRepo           *repository.ExamRepository
	progressRepo       *repository.ProgressRepository
	progressionService *ProgressionService
	log                zerolog.Logger
}

// NewGroupService creates a new GroupService.
func NewGroupService(
	examRepo *repository.ExamRepository,
	progressRepo *repository.ProgressRepository,
	progressionService *ProgressionService,
	log zerolog.Logger,
) *GroupService {
	return &GroupService{
		examRepo:           examRepo,
		progressRepo:       progressRepo,
		progressionService: progressionService,
		log:                log,
	}
}

// Status assembles the group view for a student: every published exam of
// the group with its per-exam status, the derived group unlock flag, and
// the cumulative percentage over completed exams (absent until at least
// one completion).
func (s *GroupService) Status(ctx context.Context, examGroup, studentID int) (*GroupSummary, error) {
	exams, err := s.progressRepo.GroupStatuses(ctx, examGroup, studentID)
	if err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return nil, ErrEmptyGroup
	}

	statuses := make([]model.ProgressStatus, len(exams))
	completed := 0
	for i, e := range exams {
		statuses[i] = e.Status
		if e.Status == model.ProgressStatusCompleted {
			completed++
		}
	}

	summary := &GroupSummary{
		ExamGroup:      examGroup,
		Unlocked:       progression.GroupUnlocked(statuses),
		Exams:          exams,
		CompletedCount: completed,
	}

	if completed > 0 {
		if pct, ok := s.cumulative(ctx, examGroup, studentID); ok {
			summary.CumulativePercentage = &pct
		}
	}
	return summary, nil
}

// Cumulative computes the question-count-weighted percentage across the
// group's completed exams. ok=false when nothing is completed yet.
func (s *GroupService) Cumulative(ctx context.Context, examGroup, studentID int) (float64, bool, error) {
	results, err := s.progressRepo.CompletedResults(ctx, examGroup, studentID)
	if err != nil {
		return 0, false, err
	}
	pct, ok := progression.CumulativePercentage(results)
	return pct, ok, nil
}

func (s *GroupService) cumulative(ctx context.Context, examGroup, studentID int) (float64, bool) {
	pct, ok, err := s.Cumulative(ctx, examGroup, studentID)
	if err != nil {
		s.log.Error().Err(err).Int("group", examGroup).Int("student_id", studentID).
			Msg("cumulative percentage")
		return 0, false
	}
	return pct, ok
}

// Toggle applies a teacher's open/close to every published exam of a
// group for one student. Guarded exams (completed, mid-attempt) are
// reported in their outcome and skipped; the rest of the batch still
// applies. There is no group row to flip — the next Status read derives
// the new group state.
func (s *GroupService) Toggle(ctx context.Context, examGroup, studentID int, action model.OverrideAction) ([]model.ToggleOutcome, error) {
	exams, err := s.examRepo.ListByGroup(ctx, examGroup)
	if err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return nil, ErrEmptyGroup
	}

	outcomes := make([]model.ToggleOutcome, 0, len(exams))
	for _, exam := range exams {
		outcome, err := s.progressionService.ToggleExam(ctx, exam.ID, studentID, action)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *outcome)
	}
	return outcomes, nil
}
