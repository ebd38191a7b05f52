package recovery

import (
	"fmt"
	"testing"
	"time"

	"statushub/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	counter := 0
	coordinator := NewCoordinator(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("session-%d", counter)
		}),
	)
	return coordinator, &now
}

func TestCoordinator_BeginResetsSession(t *testing.T) {
	coordinator, now := newTestCoordinator(t)

	id, started := coordinator.Begin(types.TriggerManual, "")
	require.True(t, started)
	assert.Equal(t, "session-1", id)

	_, err := coordinator.Progress(ProgressReport{SessionID: id, BytesProcessed: 2048, FilesProcessed: 1, FilesTotal: 4})
	require.NoError(t, err)
	require.NoError(t, coordinator.FileFailed(id, types.FileErrorInfo{Error: "gone", Path: "/a"}))
	_, err = coordinator.Complete(id)
	require.NoError(t, err)

	id, started = coordinator.Begin(types.TriggerAutomatic, "")
	require.True(t, started)

	state := coordinator.State()
	assert.Equal(t, "session-2", id)
	assert.Equal(t, types.RecoveryInProgress, state.State)
	assert.Equal(t, types.TriggerAutomatic, state.Trigger)
	assert.Equal(t, uint64(0), state.BytesProcessed)
	assert.Empty(t, state.Errors)
	assert.Equal(t, 0, state.ErrorCount)
	require.NotNil(t, state.StartTime)
	assert.Equal(t, *now, *state.StartTime)
	assert.Nil(t, state.EndTime)
}

func TestCoordinator_DuplicateTriggerKeepsSessionID(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	first, started := coordinator.Begin(types.TriggerAutomatic, "")
	require.True(t, started)

	second, started := coordinator.Begin(types.TriggerManual, "")
	assert.False(t, started)
	assert.Equal(t, first, second)
	assert.Equal(t, first, coordinator.State().SessionID)
	assert.Equal(t, types.TriggerAutomatic, coordinator.State().Trigger)
}

func TestCoordinator_ProgressIsMonotoneAndPublishesFileRecovery(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	id, _ := coordinator.Begin(types.TriggerManual, "external-id")
	assert.Equal(t, "external-id", id)

	info, err := coordinator.Progress(ProgressReport{Filename: "a.sav", BytesProcessed: 500, FilesProcessed: 2, FilesTotal: 5})
	require.NoError(t, err)
	assert.Equal(t, types.ProgressInfo{ID: types.OpFileRecovery, Current: 2, Total: 5, Detail: "a.sav"}, info)

	info, err = coordinator.Progress(ProgressReport{SessionID: id, BytesProcessed: 100, FilesProcessed: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Current)
	assert.Equal(t, uint64(500), coordinator.State().BytesProcessed)
}

func TestCoordinator_RejectsEventsWithoutMatchingSession(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	_, err := coordinator.Progress(ProgressReport{BytesProcessed: 1})
	assert.ErrorIs(t, err, ErrNoActiveSession)

	id, _ := coordinator.Begin(types.TriggerManual, "")
	assert.ErrorIs(t, coordinator.FileFailed("other", types.FileErrorInfo{}), ErrSessionMismatch)
	_, err = coordinator.Complete("other")
	assert.ErrorIs(t, err, ErrSessionMismatch)
	assert.True(t, coordinator.Active())

	_, err = coordinator.Fail(id, "disk full")
	require.NoError(t, err)
	_, err = coordinator.Fail(id, "again")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestCoordinator_FileFailuresDoNotEndSession(t *testing.T) {
	coordinator := NewCoordinator(WithMaxErrors(3))
	id, _ := coordinator.Begin(types.TriggerManual, "")

	for i := 0; i < 5; i++ {
		require.NoError(t, coordinator.FileFailed(id, types.FileErrorInfo{Error: "bad", Path: fmt.Sprint(i)}))
	}

	state := coordinator.State()
	assert.Equal(t, types.RecoveryInProgress, state.State)
	assert.Equal(t, 5, state.ErrorCount)
	require.Len(t, state.Errors, 3)
	assert.Equal(t, "2", state.Errors[0].Path)

	state, err := coordinator.Complete(id)
	require.NoError(t, err)
	assert.Equal(t, types.RecoveryComplete, state.State)
	assert.Equal(t, 5, state.ErrorCount)
}

func TestCoordinator_FailRecordsReasonAndResetReturnsToIdle(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	coordinator.RetryScheduled(2, 7)
	id, _ := coordinator.Begin(types.TriggerAutomatic, "")

	state, err := coordinator.Fail(id, "remote unavailable")
	require.NoError(t, err)
	assert.Equal(t, types.RecoveryError, state.State)
	assert.Equal(t, "remote unavailable", state.FailureReason)
	require.NotNil(t, state.EndTime)

	assert.False(t, coordinator.Reset("stale"))
	assert.True(t, coordinator.Reset(id))
	assert.False(t, coordinator.Reset(id))

	state = coordinator.State()
	assert.Equal(t, types.RecoveryIdle, state.State)
	assert.Empty(t, state.SessionID)
	assert.Equal(t, 2, state.RetryAttempt)
	assert.Equal(t, 7, state.RetryQueueCount)
}

func TestCoordinator_ResetIgnoresActiveSession(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	id, _ := coordinator.Begin(types.TriggerManual, "")

	assert.False(t, coordinator.Reset(id))
	assert.True(t, coordinator.Active())
}

func TestCoordinator_PendingBacklog(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := early.Add(time.Hour)

	assert.True(t, coordinator.AddPending(types.PendingRecoveryInfo{Filename: "a.sav", Path: "/saves/a.sav", Timestamp: early}))
	assert.True(t, coordinator.AddPending(types.PendingRecoveryInfo{Filename: "b.sav", Path: "/saves/b.sav", Timestamp: early}))
	assert.False(t, coordinator.AddPending(types.PendingRecoveryInfo{Filename: "a.sav", Path: "/saves/a.sav", Timestamp: later}))

	pending := coordinator.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, later, pending[0].Timestamp)

	assert.True(t, coordinator.FileRecovered("/saves/a.sav"))
	assert.False(t, coordinator.FileRecovered("/saves/a.sav"))
	assert.False(t, coordinator.FileRecovered("/other/b.sav"))
	assert.Equal(t, 1, coordinator.PendingCount())

	assert.Equal(t, 1, coordinator.ClearPending())
	assert.Equal(t, 0, coordinator.PendingCount())
}

func TestCoordinator_PendingIsIndependentOfSession(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	coordinator.AddPending(types.PendingRecoveryInfo{Path: "/x"})

	id, _ := coordinator.Begin(types.TriggerManual, "")
	_, _ = coordinator.Complete(id)
	coordinator.Reset(id)

	assert.Equal(t, 1, coordinator.PendingCount())
}
