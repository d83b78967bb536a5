package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/bimbel-backend/internal/model"
)

func TestCanStart(t *testing.T) {
	assert.ErrorIs(t, CanStart(model.ProgressStatusLocked), ErrExamLocked)
	assert.NoError(t, CanStart(model.ProgressStatusUnlocked))
	assert.NoError(t, CanStart(model.ProgressStatusInProgress)) // resume is idempotent
	assert.ErrorIs(t, CanStart(model.ProgressStatusCompleted), ErrAlreadyCompleted)
	assert.ErrorIs(t, CanStart(model.ProgressStatus("BOGUS")), ErrUnknownStatus)
}

func TestCanSubmit(t *testing.T) {
	assert.ErrorIs(t, CanSubmit(model.ProgressStatusLocked), ErrExamLocked)
	assert.NoError(t, CanSubmit(model.ProgressStatusUnlocked))
	assert.NoError(t, CanSubmit(model.ProgressStatusInProgress))
	assert.ErrorIs(t, CanSubmit(model.ProgressStatusCompleted), ErrAlreadyCompleted)
}

func TestOverrideOpen(t *testing.T) {
	cases := []struct {
		current model.ProgressStatus
		want    model.ProgressStatus
		guard   error
	}{
		{model.ProgressStatusLocked, model.ProgressStatusUnlocked, nil},
		{model.ProgressStatusUnlocked, model.ProgressStatusUnlocked, nil},
		{model.ProgressStatusInProgress, model.ProgressStatusUnlocked, nil},
		{model.ProgressStatusCompleted, model.ProgressStatusCompleted, ErrGuardCompleted},
	}

	for _, c := range cases {
		got, err := Override(c.current, model.OverrideOpen)
		if c.guard != nil {
			assert.ErrorIs(t, err, c.guard, "open from %s", c.current)
		} else {
			require.NoError(t, err, "open from %s", c.current)
		}
		assert.Equal(t, c.want, got, "open from %s", c.current)
	}
}

func TestOverrideClose(t *testing.T) {
	cases := []struct {
		current model.ProgressStatus
		want    model.ProgressStatus
		guard   error
	}{
		{model.ProgressStatusLocked, model.ProgressStatusLocked, nil},
		{model.ProgressStatusUnlocked, model.ProgressStatusLocked, nil},
		{model.ProgressStatusInProgress, model.ProgressStatusInProgress, ErrGuardInProgress},
		{model.ProgressStatusCompleted, model.ProgressStatusCompleted, ErrGuardCompleted},
	}

	for _, c := range cases {
		got, err := Override(c.current, model.OverrideClose)
		if c.guard != nil {
			assert.ErrorIs(t, err, c.guard, "close from %s", c.current)
			assert.True(t, IsGuardViolation(err))
		} else {
			require.NoError(t, err, "close from %s", c.current)
		}
		assert.Equal(t, c.want, got, "close from %s", c.current)
	}
}

func TestOverrideUnknownAction(t *testing.T) {
	_, err := Override(model.ProgressStatusLocked, model.OverrideAction("freeze"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestCanCascadeUnlock(t *testing.T) {
	// Prior locked/unlocked state is overwritten by the cascade; completed
	// and in-progress successors stay untouched.
	assert.True(t, CanCascadeUnlock(model.ProgressStatusLocked))
	assert.True(t, CanCascadeUnlock(model.ProgressStatusUnlocked))
	assert.False(t, CanCascadeUnlock(model.ProgressStatusInProgress))
	assert.False(t, CanCascadeUnlock(model.ProgressStatusCompleted))
}

func TestGroupUnlocked(t *testing.T) {
	locked := model.ProgressStatusLocked
	completed := model.ProgressStatusCompleted

	assert.True(t, GroupUnlocked([]model.ProgressStatus{locked, locked, completed}))
	assert.False(t, GroupUnlocked([]model.ProgressStatus{locked, locked, locked}))
	assert.False(t, GroupUnlocked(nil))
	assert.True(t, GroupUnlocked([]model.ProgressStatus{model.ProgressStatusInProgress}))
	assert.True(t, GroupUnlocked([]model.ProgressStatus{model.ProgressStatusUnlocked}))
}

func TestCumulativePercentageIsWeighted(t *testing.T) {
	// (8/10) and (15/20) → 23/30 = 76.67, not the simple mean 77.5.
	got, ok := CumulativePercentage([]CompletedResult{
		{Score: 8, TotalQuestions: 10},
		{Score: 15, TotalQuestions: 20},
	})
	require.True(t, ok)
	assert.InDelta(t, 76.67, got, 0.0001)
}

func TestCumulativePercentageEmpty(t *testing.T) {
	_, ok := CumulativePercentage(nil)
	assert.False(t, ok)

	_, ok = CumulativePercentage([]CompletedResult{})
	assert.False(t, ok)
}
