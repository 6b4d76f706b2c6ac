package timelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveWeekState(t *testing.T) {
	assert.Equal(t, StateNotStarted, DeriveWeekState(false, Entries{}))
	assert.Equal(t, StateNotStarted, DeriveWeekState(false, Entries{"a1": {}}))
	assert.Equal(t, StateInProgress, DeriveWeekState(false, Entries{"a1": hrs(1)}))
	assert.Equal(t, StateSubmitted, DeriveWeekState(true, Entries{}))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    WeekState
		ev      Event
		want    WeekState
		wantErr error
	}{
		{StateNotStarted, EventCommitHours, StateInProgress, nil},
		{StateInProgress, EventCommitHours, StateInProgress, nil},
		{StateSubmitted, EventCommitHours, StateSubmitted, ErrWeekSubmitted},
		{StateNotStarted, EventSubmit, StateSubmitted, nil},
		{StateInProgress, EventSubmit, StateSubmitted, nil},
		{StateSubmitted, EventSubmit, StateSubmitted, ErrWeekSubmitted},
		{StateSubmitted, EventReopen, StateInProgress, nil},
		{StateInProgress, EventReopen, StateInProgress, ErrWeekNotSubmitted},
		{StateInProgress, Event("archive"), StateInProgress, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermissions(t *testing.T) {
	owner := Actor{ID: "res-1"}
	other := Actor{ID: "res-2"}
	admin := Actor{ID: "adm", Admin: true}

	assert.True(t, CanEditWeek(owner, "res-1", StateInProgress).Allowed)
	assert.True(t, CanEditWeek(admin, "res-1", StateNotStarted).Allowed)
	assert.ErrorIs(t, CanEditWeek(other, "res-1", StateInProgress).Err, ErrNotOwner)
	assert.ErrorIs(t, CanEditWeek(owner, "res-1", StateSubmitted).Err, ErrWeekSubmitted)
	assert.ErrorIs(t, CanEditWeek(admin, "res-1", StateSubmitted).Err, ErrWeekSubmitted)

	assert.True(t, CanSubmitWeek(owner, "res-1", StateNotStarted).Allowed)
	assert.ErrorIs(t, CanSubmitWeek(owner, "res-1", StateSubmitted).Err, ErrWeekSubmitted)

	perm := CanReopenWeek(owner, "res-1", StateSubmitted)
	assert.False(t, perm.Allowed)
	assert.ErrorIs(t, perm.Err, ErrAdminRequired)
	assert.NotEmpty(t, perm.Reason)

	perm = CanReopenWeek(admin, "res-1", StateSubmitted)
	assert.True(t, perm.Allowed)
	assert.True(t, perm.NeedsConfirmation)

	perm = CanReopenWeek(Actor{ID: "res-1", Admin: true}, "res-1", StateSubmitted)
	assert.True(t, perm.Allowed)
	assert.False(t, perm.NeedsConfirmation)

	assert.ErrorIs(t, CanReopenWeek(admin, "res-1", StateInProgress).Err, ErrWeekNotSubmitted)
}
