package timelog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = Actor{ID: "res-1"}
	admin = Actor{ID: "admin-1", Admin: true}
)

func openSession(t *testing.T, store *fakeStore, actor Actor) *Session {
	t.Helper()
	s, err := OpenSession(context.Background(), store, actor, "res-1", testWeek, LedgerOptions{})
	require.NoError(t, err)
	return s
}

func countOp(store *fakeStore, op string) int {
	n := 0
	for _, c := range store.callsSnapshot() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func TestSession_StateFollowsEdits(t *testing.T) {
	s := openSession(t, newFakeStore(alloc("a1", 20)), owner)
	assert.Equal(t, StateNotStarted, s.State())

	_, err := s.Edit("a1", Monday, "0")
	require.NoError(t, err)
	assert.Equal(t, StateNotStarted, s.State())

	changed, err := s.Edit("a1", Monday, "2")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StateInProgress, s.State())
}

func TestSession_OtherResourceCannotEdit(t *testing.T) {
	s := openSession(t, newFakeStore(alloc("a1", 20)), Actor{ID: "res-2"})
	_, err := s.Edit("a1", Monday, "2")
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.True(t, s.Cell("a1", Monday).Disabled())
}

func TestSession_SubmitRefusedOverDailyCap(t *testing.T) {
	store := newFakeStore(alloc("a1", 20), alloc("a2", 20))
	s := openSession(t, store, owner)

	_, _ = s.Edit("a1", Monday, "5")
	_, _ = s.Edit("a1", Tuesday, "9")

	_, err := s.Submit(context.Background())
	require.Error(t, err)

	var refused *SubmissionRefusedError
	require.True(t, errors.As(err, &refused))
	assert.Equal(t, []Day{Tuesday}, refused.Validation.ViolatedDays)
	assert.Contains(t, refused.Error(), "1 day (Tuesday)")
	focus, ok := refused.Focus()
	require.True(t, ok)
	assert.Equal(t, CellKey{AllocationID: "a1", Day: Tuesday}, focus)

	assert.Equal(t, 0, countOp(store, "submit"))
	assert.Equal(t, 1, countOp(store, "create"), "提交前先保存全部修改")
	assert.Equal(t, StateInProgress, s.State())
	assert.False(t, s.Ledger().Locked())
}

func TestSession_SubmitBlockedBySaveFailure(t *testing.T) {
	store := newFakeStore(alloc("a1", 20))
	store.setFail("a1", errStoreDown)
	s := openSession(t, store, owner)

	_, _ = s.Edit("a1", Monday, "5")
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrUnsavedChanges)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 0, countOp(store, "submit"))
}

func TestSession_SubmitWaitsForEarlierSaves(t *testing.T) {
	store := newFakeStore(alloc("a", 20))
	s := openSession(t, store, owner)
	gate := store.setGate("a")

	_, err := s.Edit("a", Monday, "6")
	require.NoError(t, err)

	saved := make(chan error, 1)
	go func() {
		_, err := s.Ledger().SaveAll(context.Background())
		saved <- err
	}()
	require.Eventually(t, func() bool { return s.Ledger().InFlight() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.Ledger().HasUnsavedChanges())

	submitted := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		submitted <- err
	}()

	select {
	case err := <-submitted:
		t.Fatalf("保存完成前不应提交: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, countOp(store, "submit"))

	close(gate)
	require.NoError(t, <-saved)
	require.NoError(t, <-submitted)

	calls := store.callsSnapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "create", calls[0].Op)
	assert.Equal(t, "submit", calls[1].Op)
	assert.Equal(t, StateSubmitted, s.State())
	assert.True(t, s.Ledger().Locked())
}

func TestSession_SubmitBlockedByEarlierSaveFailure(t *testing.T) {
	store := newFakeStore(alloc("a", 20))
	s := openSession(t, store, owner)
	gate := store.setGate("a")
	store.setFail("a", errStoreDown)

	_, _ = s.Edit("a", Monday, "6")
	saved := make(chan error, 1)
	go func() {
		_, err := s.Ledger().SaveAll(context.Background())
		saved <- err
	}()
	require.Eventually(t, func() bool { return s.Ledger().InFlight() == 1 }, 2*time.Second, 5*time.Millisecond)

	submitted := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		submitted <- err
	}()
	close(gate)
	require.NoError(t, <-saved)

	err := <-submitted
	assert.ErrorIs(t, err, ErrUnsavedChanges)
	assert.Equal(t, 0, countOp(store, "submit"))
	assert.False(t, s.Ledger().Locked())
	assert.Contains(t, s.Ledger().FailedCells(), CellKey{AllocationID: "a", Day: Monday})
}

func TestSession_SubmitFailureUnlocksLedger(t *testing.T) {
	store := newFakeStore(alloc("a1", 20))
	store.submitErr = errStoreDown
	s := openSession(t, store, owner)

	_, _ = s.Edit("a1", Monday, "5")
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
	assert.False(t, s.Ledger().Locked())
	assert.Equal(t, StateInProgress, s.State())

	changed, err := s.Edit("a1", Tuesday, "1")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestSession_SubmitLocksWeek(t *testing.T) {
	store := newFakeStore(alloc("a1", 20), alloc("a2", 20))
	s := openSession(t, store, owner)

	_, _ = s.Edit("a1", Monday, "5")
	_, _ = s.Edit("a2", Monday, "3")

	sub, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, sub.IsSubmitted)
	assert.Equal(t, "8.00", FormatHours(sub.TotalHours))
	assert.Equal(t, StateSubmitted, s.State())
	assert.True(t, s.Ledger().Locked())

	writes := len(store.writeCalls())

	// 已提交的周：编辑为空操作且不发请求
	changed, err := s.Edit("a1", Tuesday, "1")
	assert.False(t, changed)
	assert.ErrorIs(t, err, ErrWeekSubmitted)

	cell := s.Cell("a1", Wednesday)
	assert.True(t, cell.Disabled())
	cell.Type("4")
	_, changed = cell.Commit()
	assert.False(t, changed)

	assert.True(t, s.Ledger().Value(CellKey{AllocationID: "a1", Day: Tuesday}).IsZero())
	assert.Len(t, store.writeCalls(), writes)

	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrWeekSubmitted)
}

func TestSession_ReopenRequiresAdmin(t *testing.T) {
	store := newFakeStore(alloc("a1", 20))
	s := openSession(t, store, owner)
	_, _ = s.Edit("a1", Monday, "5")
	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	_, err = s.Reopen(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAdminRequired)
	assert.Equal(t, 0, countOp(store, "unsubmit"))
	assert.Equal(t, StateSubmitted, s.State())
}

func TestSession_AdminReopen(t *testing.T) {
	store := newFakeStore(alloc("a1", 20))
	store.seed("a1", hrs(5))
	store.submission = &SubmissionSnapshot{IsSubmitted: true}

	s := openSession(t, store, admin)
	require.Equal(t, StateSubmitted, s.State())

	// 管理员操作他人的周需要确认；取消时不发请求
	var asked string
	_, err := s.Reopen(context.Background(), func(resourceID string) bool {
		asked = resourceID
		return false
	})
	assert.ErrorIs(t, err, ErrReopenCancelled)
	assert.Equal(t, "res-1", asked)
	assert.Equal(t, 0, countOp(store, "unsubmit"))

	sub, err := s.Reopen(context.Background(), func(string) bool { return true })
	require.NoError(t, err)
	assert.False(t, sub.IsSubmitted)
	assert.Equal(t, StateInProgress, s.State())
	assert.True(t, s.EditPermission().Allowed)
	assert.False(t, s.Cell("a1", Monday).Disabled())

	changed, err := s.Edit("a1", Tuesday, "2")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestSession_ReopenNotSubmitted(t *testing.T) {
	s := openSession(t, newFakeStore(alloc("a1", 20)), admin)
	_, err := s.Reopen(context.Background(), nil)
	assert.ErrorIs(t, err, ErrWeekNotSubmitted)
}

func TestSession_OverviewAndWarnings(t *testing.T) {
	store := newFakeStore(alloc("a1", 20), alloc("a2", 40))
	s := openSession(t, store, owner)

	for _, day := range []Day{Monday, Tuesday, Wednesday} {
		_, _ = s.Edit("a1", day, "8")
	}
	_, _ = s.Edit("a1", Thursday, "2")
	_, _ = s.Edit("a2", Monday, "1")

	o := s.Overview()
	assert.Equal(t, StateInProgress, o.State)
	assert.True(t, o.HasUnsavedChanges)
	assert.Equal(t, "27.00", FormatHours(o.TotalHours))
	assert.Equal(t, SeverityModerate, o.Daily[Monday].Severity)
	assert.False(t, o.Submission.CanSubmit)
	require.Len(t, o.Exceeded, 1)
	assert.Equal(t, "a1", o.Exceeded[0].AllocationID)

	// a2 周一正在输入 2：8 + 2 = 10
	w := s.DailyWarning("a2", Monday, "2")
	assert.Equal(t, SeveritySevere, w.Severity)
	assert.Contains(t, w.WarningMessage, "+2.0h")
}

func TestNavigationGuard(t *testing.T) {
	t.Run("nothing unsaved", func(t *testing.T) {
		l := newTestLedger(t, newFakeStore(alloc("a1", 20)), 0)
		called := false
		err := NewNavigationGuard(l).Leave(context.Background(), func(context.Context, []CellKey) Decision {
			called = true
			return DecisionCancel
		})
		require.NoError(t, err)
		assert.False(t, called)

		_, err = l.Commit("a1", Monday, "1")
		assert.ErrorIs(t, err, ErrLedgerClosed)
	})

	t.Run("cancel stays", func(t *testing.T) {
		l := newTestLedger(t, newFakeStore(alloc("a1", 20)), 0)
		_, _ = l.Commit("a1", Monday, "1")

		var seen []CellKey
		err := NewNavigationGuard(l).Leave(context.Background(), func(_ context.Context, unsaved []CellKey) Decision {
			seen = unsaved
			return DecisionCancel
		})
		assert.ErrorIs(t, err, ErrNavigationCancelled)
		assert.Equal(t, []CellKey{{AllocationID: "a1", Day: Monday}}, seen)

		_, err = l.Commit("a1", Tuesday, "1")
		assert.NoError(t, err)
	})

	t.Run("nil prompt cancels", func(t *testing.T) {
		l := newTestLedger(t, newFakeStore(alloc("a1", 20)), 0)
		_, _ = l.Commit("a1", Monday, "1")
		assert.ErrorIs(t, NewNavigationGuard(l).Leave(context.Background(), nil), ErrNavigationCancelled)
	})

	t.Run("save then leave", func(t *testing.T) {
		store := newFakeStore(alloc("a1", 20))
		l := newTestLedger(t, store, 0)
		_, _ = l.Commit("a1", Monday, "1")

		err := NewNavigationGuard(l).Leave(context.Background(), func(context.Context, []CellKey) Decision {
			return DecisionSave
		})
		require.NoError(t, err)
		assert.Len(t, store.writeCalls(), 1)
		assert.False(t, l.HasUnsavedChanges())
	})

	t.Run("save failure stays", func(t *testing.T) {
		store := newFakeStore(alloc("a1", 20))
		store.setFail("a1", errStoreDown)
		l := newTestLedger(t, store, 0)
		_, _ = l.Commit("a1", Monday, "1")

		err := NewNavigationGuard(l).Leave(context.Background(), func(context.Context, []CellKey) Decision {
			return DecisionSave
		})
		assert.ErrorIs(t, err, ErrUnsavedChanges)
		assert.ErrorIs(t, err, errStoreDown)
		assert.Contains(t, l.FailedCells(), CellKey{AllocationID: "a1", Day: Monday})
	})

	t.Run("discard then leave", func(t *testing.T) {
		store := newFakeStore(alloc("a1", 20))
		l := newTestLedger(t, store, 0)
		_, _ = l.Commit("a1", Monday, "1")

		err := NewNavigationGuard(l).Leave(context.Background(), func(context.Context, []CellKey) Decision {
			return DecisionDiscard
		})
		require.NoError(t, err)
		assert.Empty(t, store.writeCalls())
		assert.True(t, l.Value(CellKey{AllocationID: "a1", Day: Monday}).IsZero())
	})
}
