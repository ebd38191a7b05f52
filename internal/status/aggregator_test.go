package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"statushub/internal/events"
	"statushub/internal/progress"
	"statushub/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func newTestAggregator(t *testing.T, opts Options, deps ...Dependency) (*Aggregator, *events.Channel) {
	t.Helper()

	channel := events.NewChannel(128)
	if opts.DismissalGrace == 0 {
		opts.DismissalGrace = time.Hour
	}
	aggregator := NewAggregator(channel, opts, deps...)
	aggregator.Start()

	t.Cleanup(func() {
		_ = aggregator.Stop()
		_ = channel.Close()
	})

	return aggregator, channel
}

func publish(t *testing.T, channel *events.Channel, evs ...events.Event) {
	t.Helper()
	for _, event := range evs {
		require.NoError(t, channel.Publish(event))
	}
}

// waitForSnapshot polls until cond holds and returns the matching snapshot
func waitForSnapshot(t *testing.T, aggregator *Aggregator, cond func(Snapshot) bool) Snapshot {
	t.Helper()

	var last Snapshot
	require.Eventually(t, func() bool {
		snapshot, err := aggregator.Snapshot(context.Background())
		if err != nil {
			return false
		}
		last = snapshot
		return cond(snapshot)
	}, waitTimeout, 5*time.Millisecond)

	return last
}

func TestAggregator_ProgressLastWriteWinsAndRemoval(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})

	publish(t, channel, events.ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 4})
	publish(t, channel, events.ProgressUpdated{ID: types.OpLibraryScan, Current: 0, Total: 10})
	for i := int64(1); i <= 10; i++ {
		publish(t, channel, events.ProgressUpdated{ID: types.OpLibraryScan, Current: i, Total: 10, Detail: fmt.Sprint("step ", i)})
	}

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return len(s.Progress) == 2 && s.Progress[1].Current == 10
	})
	assert.Equal(t, types.ProgressInfo{ID: types.OpLibraryScan, Current: 10, Total: 10, Detail: "step 10"}, snapshot.Progress[1])
	assert.InDelta(t, (0.25+1.0)/2, snapshot.Gauge.Cumulative, 1e-9)
	assert.True(t, snapshot.Operations[types.OpLibraryScan].Active)

	publish(t, channel, events.ProgressRemoved{ID: types.OpLibraryScan})

	snapshot = waitForSnapshot(t, aggregator, func(s Snapshot) bool { return len(s.Progress) == 1 })
	assert.Equal(t, types.OpDownload, snapshot.Progress[0].ID)
	assert.InDelta(t, 0.25, snapshot.Gauge.Cumulative, 1e-9)
	assert.Equal(t, progress.LevelQuarter, snapshot.Gauge.Level)
	assert.False(t, snapshot.Operations[types.OpLibraryScan].Active)

	publish(t, channel, events.ProgressRemoved{ID: types.OpLibraryScan}, events.ProgressRemoved{ID: types.OpDownload})
	snapshot = waitForSnapshot(t, aggregator, func(s Snapshot) bool { return len(s.Progress) == 0 })
	assert.Equal(t, 0.0, snapshot.Gauge.Cumulative)
}

func TestAggregator_FileErrorsKeepTenMostRecentAndAlert(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})

	for i := 0; i < 11; i++ {
		publish(t, channel, events.FileAccessError{
			Path:     fmt.Sprintf("/library/%02d.rom", i),
			Filename: fmt.Sprintf("%02d.rom", i),
			Error:    "permission denied",
		})
	}

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return len(s.FileErrors) == 10 && s.FileErrors[9].Path == "/library/10.rom"
	})
	assert.Equal(t, "/library/01.rom", snapshot.FileErrors[0].Path)
	require.NotNil(t, snapshot.CurrentAlert)
	assert.Equal(t, types.MessageError, snapshot.CurrentAlert.Type)
	assert.Contains(t, snapshot.CurrentAlert.Message, "10.rom")
	assert.NotNil(t, snapshot.LastErrorTime)
}

func TestAggregator_DuplicateManualTriggerKeepsSession(t *testing.T) {
	aggregator, _ := newTestAggregator(t, Options{})
	ctx := context.Background()

	first, started, err := aggregator.TriggerManualRecovery(ctx)
	require.NoError(t, err)
	require.True(t, started)

	second, started, err := aggregator.TriggerManualRecovery(ctx)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, first, second)

	third, started, err := aggregator.TriggerAutomaticRecovery(ctx)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, first, third)

	snapshot, err := aggregator.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RecoveryInProgress, snapshot.Recovery.State)
	assert.Equal(t, first, snapshot.Recovery.SessionID)
	assert.Equal(t, types.TriggerManual, snapshot.Recovery.Trigger)
}

func TestAggregator_CompletionIsDismissedAfterGrace(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{DismissalGrace: 50 * time.Millisecond})
	ctx := context.Background()

	id, _, err := aggregator.TriggerManualRecovery(ctx)
	require.NoError(t, err)
	publish(t, channel,
		events.RecoveryProgress{SessionID: id, Filename: "a.sav", BytesProcessed: 1024, FilesProcessed: 1, FilesTotal: 1},
		events.RecoveryCompleted{SessionID: id},
	)

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return s.Recovery.State == types.RecoveryComplete
	})
	assert.Equal(t, types.OpFileRecovery, snapshot.TemporaryStatus.Key)
	assert.Contains(t, snapshot.TemporaryStatus.Message, "Recovery complete")
	assert.Equal(t, uint64(1024), snapshot.Recovery.BytesProcessed)
	assert.Empty(t, snapshot.Progress)

	snapshot = waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return s.Recovery.State == types.RecoveryIdle
	})
	assert.Empty(t, snapshot.TemporaryStatus.Message)
	assert.Empty(t, snapshot.Recovery.SessionID)
}

func TestAggregator_RemovedProgressLineIsDismissedAfterGrace(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{DismissalGrace: 50 * time.Millisecond})

	for i := int64(0); i <= 10; i++ {
		publish(t, channel, events.ProgressUpdated{ID: types.OpLibraryScan, Current: i, Total: 10})
	}
	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return len(s.Progress) == 1 && s.Progress[0].Current == 10
	})
	assert.Equal(t, types.OpLibraryScan, snapshot.TemporaryStatus.Key)

	publish(t, channel, events.ProgressRemoved{ID: types.OpLibraryScan})

	snapshot = waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return s.TemporaryStatus.Message == ""
	})
	assert.Empty(t, snapshot.Progress)
	assert.Zero(t, snapshot.Gauge.Cumulative)
	assert.False(t, snapshot.Operations[types.OpLibraryScan].Active)
}

func TestAggregator_RemovalLeavesOtherLinesAlone(t *testing.T) {
	grace := 40 * time.Millisecond
	aggregator, channel := newTestAggregator(t, Options{DismissalGrace: grace})

	publish(t, channel,
		events.ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 2},
		events.ProgressUpdated{ID: types.OpLibraryScan, Current: 1, Total: 4},
		events.ProgressRemoved{ID: types.OpDownload},
	)
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return len(s.Progress) == 1 })

	time.Sleep(3 * grace)

	snapshot, err := aggregator.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.OpLibraryScan, snapshot.TemporaryStatus.Key)
	assert.NotEmpty(t, snapshot.TemporaryStatus.Message)
}

func TestAggregator_NewSessionCancelsPendingDismissal(t *testing.T) {
	grace := 80 * time.Millisecond
	aggregator, channel := newTestAggregator(t, Options{DismissalGrace: grace})
	ctx := context.Background()

	first, _, err := aggregator.TriggerManualRecovery(ctx)
	require.NoError(t, err)
	publish(t, channel, events.RecoveryCompleted{SessionID: first})
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Recovery.State == types.RecoveryComplete })

	second, started, err := aggregator.TriggerManualRecovery(ctx)
	require.NoError(t, err)
	require.True(t, started)
	assert.NotEqual(t, first, second)

	time.Sleep(3 * grace)

	snapshot, err := aggregator.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RecoveryInProgress, snapshot.Recovery.State)
	assert.Equal(t, second, snapshot.Recovery.SessionID)
	assert.Equal(t, types.OpFileRecovery, snapshot.TemporaryStatus.Key)
	assert.Equal(t, "Recovering files...", snapshot.TemporaryStatus.Message)
}

func TestAggregator_NewerLineForKeySurvivesOldDismissal(t *testing.T) {
	grace := 60 * time.Millisecond
	aggregator, channel := newTestAggregator(t, Options{DismissalGrace: grace})

	publish(t, channel, events.StatusMessagePosted{Message: "first", Type: types.MessageInfo})
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.TemporaryStatus.Message == "first" })

	publish(t, channel, events.ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 2})
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.TemporaryStatus.Key == types.OpDownload })

	time.Sleep(3 * grace)

	snapshot, err := aggregator.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Downloading (1/2)", snapshot.TemporaryStatus.Message)
}

func TestAggregator_SecondFatalErrorReplacesAlert(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})
	ctx := context.Background()

	id, _, err := aggregator.TriggerManualRecovery(ctx)
	require.NoError(t, err)

	publish(t, channel,
		events.RecoveryFailed{SessionID: id, Error: "remote store unreachable"},
		events.RecoveryFailed{SessionID: "another", Error: "quota exceeded"},
	)

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return s.CurrentAlert != nil && s.CurrentAlert.Message == "Recovery failed: quota exceeded"
	})
	assert.Equal(t, types.RecoveryError, snapshot.Recovery.State)
	assert.Equal(t, "remote store unreachable", snapshot.Recovery.FailureReason)

	publish(t, channel, events.StatusMessagePosted{Message: "sync finished", Type: types.MessageSuccess})
	snapshot = waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return len(s.Messages) == 3
	})
	assert.Equal(t, "Recovery failed: quota exceeded", snapshot.CurrentAlert.Message)

	require.NoError(t, aggregator.DismissAlert(ctx))
	snapshot, err = aggregator.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot.CurrentAlert)
}

func TestAggregator_RecoveryFileFailuresAccumulateWithoutAlert(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})
	ctx := context.Background()

	id, _, err := aggregator.TriggerManualRecovery(ctx)
	require.NoError(t, err)
	publish(t, channel,
		events.RecoveryFileFailed{SessionID: id, Path: "/a", Filename: "a", Error: "checksum"},
		events.RecoveryFileFailed{SessionID: id, Path: "/b", Filename: "b", Error: "timeout"},
		events.RecoveryProgress{SessionID: id, FilesProcessed: 2, FilesTotal: 3},
	)

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Recovery.FilesProcessed == 2 })
	assert.Equal(t, types.RecoveryInProgress, snapshot.Recovery.State)
	assert.Equal(t, 2, snapshot.Recovery.ErrorCount)
	assert.Len(t, snapshot.RecoveryErrors, 2)
	assert.Nil(t, snapshot.CurrentAlert)
	assert.Equal(t, []types.ProgressInfo{{ID: types.OpFileRecovery, Current: 2, Total: 3}}, snapshot.Progress)
}

func TestAggregator_PendingRecoveryRemovedOnSuccessOrClear(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})
	ctx := context.Background()

	publish(t, channel,
		events.FilePendingRecovery{Path: "/saves/a.sav", Filename: "a.sav"},
		events.FilePendingRecovery{Path: "/saves/b.sav", Filename: "b.sav"},
		events.FilePendingRecovery{Path: "/saves/a.sav", Filename: "a.sav"},
	)
	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.PendingRecoveryCount == 2 })
	assert.Equal(t, types.RecoveryIdle, snapshot.Recovery.State)

	publish(t, channel, events.RecoveryFileRecovered{Path: "/saves/a.sav", Filename: "a.sav"})
	snapshot = waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.PendingRecoveryCount == 1 })
	assert.Equal(t, "/saves/b.sav", snapshot.PendingRecovery[0].Path)

	cleared, err := aggregator.ClearPendingRecovery(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
}

func TestAggregator_ExternalRecoveryEventsStartSession(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})

	publish(t, channel, events.RecoveryProgress{SessionID: "ext-1", Filename: "x", FilesProcessed: 1, FilesTotal: 4})

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Recovery.SessionID == "ext-1" })
	assert.Equal(t, types.TriggerExternal, snapshot.Recovery.Trigger)
	assert.Equal(t, 4, snapshot.Recovery.FilesTotal)

	publish(t, channel, events.RecoveryStarted{SessionID: "ext-2"})
	publish(t, channel, events.RecoveryCompleted{SessionID: "ext-2"})
	publish(t, channel, events.RecoveryProgress{SessionID: "ext-1", FilesProcessed: 2})

	snapshot = waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Recovery.FilesProcessed == 2 })
	assert.Equal(t, types.RecoveryInProgress, snapshot.Recovery.State)
	assert.Equal(t, "ext-1", snapshot.Recovery.SessionID)
}

func TestAggregator_RetryCountersAreExposed(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})

	publish(t, channel, events.RecoveryRetryScheduled{Attempt: 3, QueueCount: 12})

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Recovery.RetryAttempt == 3 })
	assert.Equal(t, 12, snapshot.Recovery.RetryQueueCount)
}

type fakeRecoverer struct {
	channel *events.Channel
	err     error
}

func (f *fakeRecoverer) Recover(ctx context.Context, sessionID string) error {
	_ = f.channel.Publish(events.RecoveryProgress{SessionID: sessionID, Filename: "a.sav", BytesProcessed: 10, FilesProcessed: 1, FilesTotal: 1})
	_ = f.channel.Publish(events.RecoveryFileRecovered{SessionID: sessionID, Path: "/saves/a.sav", Filename: "a.sav"})
	return f.err
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions []types.RecoverySessionState
}

func (f *fakeRecorder) RecordSession(ctx context.Context, session types.RecoverySessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeRecorder) recorded() []types.RecoverySessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.RecoverySessionState(nil), f.sessions...)
}

func TestAggregator_RecovererDrivesSessionToCompletion(t *testing.T) {
	channel := events.NewChannel(64)
	recorder := &fakeRecorder{}
	aggregator := NewAggregator(channel, Options{DismissalGrace: time.Hour},
		WithRecoverer(&fakeRecoverer{channel: channel}),
		WithSessionRecorder(recorder),
	)
	aggregator.Start()
	t.Cleanup(func() {
		_ = aggregator.Stop()
		_ = channel.Close()
	})

	publish(t, channel, events.FilePendingRecovery{Path: "/saves/a.sav", Filename: "a.sav"})
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.PendingRecoveryCount == 1 })

	id, started, err := aggregator.TriggerManualRecovery(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Recovery.State == types.RecoveryComplete })
	assert.Equal(t, id, snapshot.Recovery.SessionID)
	assert.Equal(t, 0, snapshot.PendingRecoveryCount)

	require.Eventually(t, func() bool { return len(recorder.recorded()) == 1 }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, types.RecoveryComplete, recorder.recorded()[0].State)
}

func TestAggregator_RecovererErrorFailsSession(t *testing.T) {
	channel := events.NewChannel(64)
	aggregator := NewAggregator(channel, Options{DismissalGrace: time.Hour},
		WithRecoverer(&fakeRecoverer{channel: channel, err: errors.New("remote store offline")}),
	)
	aggregator.Start()
	t.Cleanup(func() {
		_ = aggregator.Stop()
		_ = channel.Close()
	})

	_, _, err := aggregator.TriggerManualRecovery(context.Background())
	require.NoError(t, err)

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Recovery.State == types.RecoveryError })
	require.NotNil(t, snapshot.CurrentAlert)
	assert.Equal(t, "Recovery failed: remote store offline", snapshot.CurrentAlert.Message)
}

type fakeService struct {
	mu       sync.Mutex
	name     string
	running  bool
	startErr error
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeService) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeService) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func TestAggregator_ToggleExternalService(t *testing.T) {
	webServer := &fakeService{name: types.ServiceWebServer}
	broken := &fakeService{name: types.ServiceCloudSync, startErr: errors.New("no credentials")}
	aggregator, _ := newTestAggregator(t, Options{}, WithServices(webServer, broken))
	ctx := context.Background()

	assert.Equal(t, []string{types.ServiceCloudSync, types.ServiceWebServer}, aggregator.Services())

	running, err := aggregator.ToggleExternalService(ctx, types.ServiceWebServer)
	require.NoError(t, err)
	assert.True(t, running)
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.Services[types.ServiceWebServer] })

	running, err = aggregator.ToggleExternalService(ctx, types.ServiceWebServer)
	require.NoError(t, err)
	assert.False(t, running)
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return !s.Services[types.ServiceWebServer] })

	_, err = aggregator.ToggleExternalService(ctx, types.ServiceCloudSync)
	assert.Error(t, err)
	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool { return s.CurrentAlert != nil })
	assert.Contains(t, snapshot.CurrentAlert.Message, "no credentials")
	assert.False(t, snapshot.Services[types.ServiceCloudSync])

	_, err = aggregator.ToggleExternalService(ctx, "ftp")
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestAggregator_ClearMessages(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})
	ctx := context.Background()

	publish(t, channel,
		events.StatusMessagePosted{Message: "one", Type: types.MessageInfo},
		events.StatusMessagePosted{Message: "two", Type: types.MessageWarning},
	)
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return len(s.Messages) == 2 })

	require.NoError(t, aggregator.ClearMessages(ctx))

	snapshot, err := aggregator.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Messages)
	assert.Empty(t, snapshot.TemporaryStatus.Message)
}

func TestAggregator_MessagesAreCapped(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{MaxMessages: 3})

	for i := 0; i < 5; i++ {
		publish(t, channel, events.StatusMessagePosted{Message: fmt.Sprint(i), Type: types.MessageWarning})
	}

	snapshot := waitForSnapshot(t, aggregator, func(s Snapshot) bool {
		return len(s.Messages) == 3 && s.Messages[2].Message == "4"
	})
	assert.Equal(t, "2", snapshot.Messages[0].Message)
}

func TestAggregator_SubscriptionIsDebounced(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{DebounceWindow: 50 * time.Millisecond})

	sub, err := aggregator.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	initial := <-sub.C()
	assert.Empty(t, initial.Progress)

	for i := int64(1); i <= 100; i++ {
		publish(t, channel, events.ProgressUpdated{ID: types.OpArchiveExtraction, Current: i, Total: 100})
	}

	var received []Snapshot
	deadline := time.After(400 * time.Millisecond)
collect:
	for {
		select {
		case snapshot := <-sub.C():
			received = append(received, snapshot)
		case <-deadline:
			break collect
		}
	}

	require.NotEmpty(t, received)
	assert.LessOrEqual(t, len(received), 3)
	last := received[len(received)-1]
	require.Len(t, last.Progress, 1)
	assert.Equal(t, int64(100), last.Progress[0].Current)
}

func TestAggregator_SubscribeRequestsCurrentState(t *testing.T) {
	aggregator, channel := newTestAggregator(t, Options{})
	observer := channel.Subscribe("observer", events.KindStateRequested)

	sub, err := aggregator.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	assert.Len(t, observer.Drain(), 1)
}

func TestAggregator_StopClosesSubscriptionsAndRejectsControls(t *testing.T) {
	channel := events.NewChannel(8)
	defer channel.Close()
	aggregator := NewAggregator(channel, Options{})

	_, err := aggregator.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)

	aggregator.Start()
	sub, err := aggregator.Subscribe(context.Background())
	require.NoError(t, err)
	<-sub.C()

	require.NoError(t, aggregator.Stop())
	require.NoError(t, aggregator.Stop())

	_, open := <-sub.C()
	assert.False(t, open)

	_, _, err = aggregator.TriggerManualRecovery(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	sub.Close()
}

func TestAggregator_StopClearsActiveProgress(t *testing.T) {
	channel := events.NewChannel(8)
	defer channel.Close()
	aggregator := NewAggregator(channel, Options{})
	aggregator.Start()

	publish(t, channel, events.ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 2})
	waitForSnapshot(t, aggregator, func(s Snapshot) bool { return len(s.Progress) == 1 })

	require.NoError(t, aggregator.Stop())
	assert.Zero(t, aggregator.registry.Len())
}

func TestOptions_ZeroValuesFallBackToDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, DEFAULT_DEBOUNCE_WINDOW, opts.DebounceWindow)
	assert.Equal(t, DEFAULT_DISMISSAL_GRACE, opts.DismissalGrace)
	assert.Equal(t, DEFAULT_MAILBOX_SIZE, opts.MailboxSize)

	opts = Options{DebounceWindow: NO_DEBOUNCE}.withDefaults()
	assert.Equal(t, NO_DEBOUNCE, opts.DebounceWindow)
}
