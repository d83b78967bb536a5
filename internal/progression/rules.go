// Package progression holds the pure decision rules of the per-(student,
// exam) state machine: locked → unlocked → in_progress → completed.
// Committing the decisions to the store is the service layer's job; this
// package never touches I/O, so every rule is exhaustively testable.
package progression

import (
	"errors"

	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/scoring"
)

// Rule errors. Guard errors are reported per-exam in bulk operations,
// never aborting the batch.
var (
	ErrExamLocked        = errors.New("exam is locked for this student")
	ErrAlreadyCompleted  = errors.New("exam is already completed")
	ErrGuardCompleted    = errors.New("completed exams cannot be overridden")
	ErrGuardInProgress   = errors.New("in-progress attempts cannot be overridden")
	ErrUnknownStatus     = errors.New("unknown progress status")
	ErrUnknownAction     = errors.New("unknown override action")
)

// CanStart reports whether a student may start (or resume) an exam with
// the given status. A missing progress row is a locked exam: callers pass
// model.ProgressStatusLocked for it. Re-entering an in-progress exam is
// allowed — the unlocked → in_progress transition is idempotent.
func CanStart(status model.ProgressStatus) error {
	switch status {
	case model.ProgressStatusLocked:
		return ErrExamLocked
	case model.ProgressStatusUnlocked, model.ProgressStatusInProgress:
		return nil
	case model.ProgressStatusCompleted:
		return ErrAlreadyCompleted
	default:
		return ErrUnknownStatus
	}
}

// CanSubmit reports whether a submission may be graded for the given
// status. Re-submission of a completed exam is always refused — the
// review flow is the only repeatable path.
func CanSubmit(status model.ProgressStatus) error {
	switch status {
	case model.ProgressStatusLocked:
		return ErrExamLocked
	case model.ProgressStatusUnlocked, model.ProgressStatusInProgress:
		return nil
	case model.ProgressStatusCompleted:
		return ErrAlreadyCompleted
	default:
		return ErrUnknownStatus
	}
}

// Override resolves a teacher's manual open/close against the current
// status. "open" is permitted for any non-completed status and yields
// unlocked; "close" only for locked/unlocked and yields locked. Work in
// flight and finished work are guarded per exam.
func Override(status model.ProgressStatus, action model.OverrideAction) (model.ProgressStatus, error) {
	switch action {
	case model.OverrideOpen:
		switch status {
		case model.ProgressStatusLocked, model.ProgressStatusUnlocked, model.ProgressStatusInProgress:
			return model.ProgressStatusUnlocked, nil
		case model.ProgressStatusCompleted:
			return status, ErrGuardCompleted
		default:
			return status, ErrUnknownStatus
		}
	case model.OverrideClose:
		switch status {
		case model.ProgressStatusLocked, model.ProgressStatusUnlocked:
			return model.ProgressStatusLocked, nil
		case model.ProgressStatusInProgress:
			return status, ErrGuardInProgress
		case model.ProgressStatusCompleted:
			return status, ErrGuardCompleted
		default:
			return status, ErrUnknownStatus
		}
	default:
		return status, ErrUnknownAction
	}
}

// IsGuardViolation reports whether an override was refused by the
// completed/in_progress immutability guards.
func IsGuardViolation(err error) bool {
	return errors.Is(err, ErrGuardCompleted) || errors.Is(err, ErrGuardInProgress)
}

// CanCascadeUnlock reports whether the successor exam's status may be set
// to unlocked by the completion cascade. Prior locked or unlocked state is
// overwritten; completed stays completed and a running attempt is never
// pulled backward.
func CanCascadeUnlock(successor model.ProgressStatus) bool {
	switch successor {
	case model.ProgressStatusLocked, model.ProgressStatusUnlocked:
		return true
	case model.ProgressStatusInProgress, model.ProgressStatusCompleted:
		return false
	default:
		return false
	}
}

// GroupUnlocked derives the group-level visibility from the statuses of
// the group's progress rows: unlocked iff any exam is unlocked,
// in_progress, or completed. Exams without a row are locked and simply
// absent from the slice.
func GroupUnlocked(statuses []model.ProgressStatus) bool {
	for _, s := range statuses {
		switch s {
		case model.ProgressStatusUnlocked, model.ProgressStatusInProgress, model.ProgressStatusCompleted:
			return true
		case model.ProgressStatusLocked:
		}
	}
	return false
}

// CompletedResult is one completed exam's frozen score pair, as written on
// the ExamProgress row at submission time.
type CompletedResult struct {
	Score          int
	TotalQuestions int
}

// CumulativePercentage computes the question-count-weighted percentage
// across a group's completed exams: round(100 * Σscore / Σtotal, 2).
// Returns ok=false when there is nothing completed to aggregate.
func CumulativePercentage(results []CompletedResult) (float64, bool) {
	var sumScore, sumTotal int
	for _, r := range results {
		sumScore += r.Score
		sumTotal += r.TotalQuestions
	}
	if sumTotal == 0 {
		return 0, false
	}
	return scoring.RoundPercentage(100 * float64(sumScore) / float64(sumTotal)), true
}
