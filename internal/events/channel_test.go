package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"statushub/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_DeliversOnlySubscribedKinds(t *testing.T) {
	channel := NewChannel(16)
	progressOnly := channel.Subscribe("progress", KindProgressUpdated, KindProgressRemoved)
	everything := channel.Subscribe("all")

	require.NoError(t, channel.Publish(ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 2}))
	require.NoError(t, channel.Publish(StatusMessagePosted{Message: "hello", Type: types.MessageInfo}))
	require.NoError(t, channel.Publish(ProgressRemoved{ID: types.OpDownload}))

	assert.Equal(t, []Event{
		ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 2},
		ProgressRemoved{ID: types.OpDownload},
	}, progressOnly.Drain())
	assert.Len(t, everything.Drain(), 3)
}

func TestChannel_ProgressCoalescesLastValueWins(t *testing.T) {
	channel := NewChannel(16)
	sub := channel.Subscribe("test")

	for i := int64(0); i <= 10; i++ {
		require.NoError(t, channel.Publish(ProgressUpdated{ID: types.OpLibraryScan, Current: i, Total: 10}))
	}
	require.NoError(t, channel.Publish(ProgressUpdated{ID: types.OpDownload, Current: 3, Total: 4}))

	drained := sub.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, ProgressUpdated{ID: types.OpLibraryScan, Current: 10, Total: 10}, drained[0])
	assert.Equal(t, ProgressUpdated{ID: types.OpDownload, Current: 3, Total: 4}, drained[1])
}

func TestChannel_RemovalIsACoalescingBarrier(t *testing.T) {
	channel := NewChannel(16)
	sub := channel.Subscribe("test")

	require.NoError(t, channel.Publish(ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 5}))
	require.NoError(t, channel.Publish(ProgressRemoved{ID: types.OpDownload}))
	require.NoError(t, channel.Publish(ProgressUpdated{ID: types.OpDownload, Current: 0, Total: 9}))

	assert.Equal(t, []Event{
		ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 5},
		ProgressRemoved{ID: types.OpDownload},
		ProgressUpdated{ID: types.OpDownload, Current: 0, Total: 9},
	}, sub.Drain())
}

func TestChannel_FullMailboxDropsOnlyInformationalMessages(t *testing.T) {
	channel := NewChannel(2)
	sub := channel.Subscribe("test")

	require.NoError(t, channel.Publish(StatusMessagePosted{Message: "one", Type: types.MessageInfo}))
	require.NoError(t, channel.Publish(StatusMessagePosted{Message: "two", Type: types.MessageInfo}))
	require.NoError(t, channel.Publish(StatusMessagePosted{Message: "three", Type: types.MessageInfo}))
	require.NoError(t, channel.Publish(RecoveryFailed{SessionID: "s1", Error: "fatal"}))
	require.NoError(t, channel.Publish(StatusMessagePosted{Message: "careful", Type: types.MessageWarning}))

	drained := sub.Drain()
	require.Len(t, drained, 4)
	assert.Equal(t, RecoveryFailed{SessionID: "s1", Error: "fatal"}, drained[2])
	assert.Equal(t, uint64(1), sub.Dropped())
}

func TestChannel_StalledSubscriberHasHardCeiling(t *testing.T) {
	channel := NewChannel(4)
	sub := channel.Subscribe("stalled")

	for i := range 1000 {
		require.NoError(t, channel.Publish(FileAccessError{
			Path:     fmt.Sprintf("/data/%d.bin", i),
			Filename: fmt.Sprintf("%d.bin", i),
			Error:    "permission denied",
		}))
	}
	for i := range 1000 {
		require.NoError(t, channel.Publish(RecoveryFailed{SessionID: fmt.Sprint(i), Error: "fatal"}))
	}
	require.NoError(t, channel.Publish(StatusMessagePosted{Message: "late", Type: types.MessageError}))

	drained := sub.Drain()
	require.Len(t, drained, 4*MAILBOX_RESERVE_FACTOR)
	for _, event := range drained[:4] {
		assert.Equal(t, KindFileAccessError, event.Kind())
	}
	for _, event := range drained[4:] {
		assert.Equal(t, KindRecoveryFailed, event.Kind())
	}
	assert.Equal(t, uint64(2000+1-len(drained)), sub.Dropped())
}

func TestChannel_FullMailboxKeepsLifecycleEventsInReserve(t *testing.T) {
	channel := NewChannel(2)
	sub := channel.Subscribe("test")

	require.NoError(t, channel.Publish(FilePendingRecovery{Path: "/a", Filename: "a"}))
	require.NoError(t, channel.Publish(FilePendingRecovery{Path: "/b", Filename: "b"}))
	require.NoError(t, channel.Publish(RecoveryFileFailed{Path: "/c", Filename: "c", Error: "io"}))
	require.NoError(t, channel.Publish(ProgressRemoved{ID: types.OpDownload}))
	require.NoError(t, channel.Publish(ServiceStateChanged{Service: types.ServiceScheduler, Running: true}))

	drained := sub.Drain()
	require.Len(t, drained, 4)
	assert.Equal(t, ProgressRemoved{ID: types.OpDownload}, drained[2])
	assert.Equal(t, ServiceStateChanged{Service: types.ServiceScheduler, Running: true}, drained[3])
	assert.Equal(t, uint64(1), sub.Dropped())
}

func TestChannel_LateSubscriberMissesEarlierEvents(t *testing.T) {
	channel := NewChannel(8)
	require.NoError(t, channel.Publish(ProgressUpdated{ID: types.OpDownload, Current: 1, Total: 2}))

	late := channel.Subscribe("late")

	assert.Empty(t, late.Drain())
}

func TestChannel_CloseRejectsPublishAndUnblocksNext(t *testing.T) {
	channel := NewChannel(8)
	sub := channel.Subscribe("test")

	errs := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errs <- err
	}()

	require.NoError(t, channel.Close())
	assert.ErrorIs(t, channel.Publish(StateRequested{}), ErrClosed)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}
	assert.Equal(t, 0, channel.SubscriberCount())
}

func TestChannel_RejectsNilEvent(t *testing.T) {
	channel := NewChannel(8)

	assert.ErrorIs(t, channel.Publish(nil), ErrNilEvent)
}

func TestChannel_ConcurrentPublishersNeverBlock(t *testing.T) {
	channel := NewChannel(8)
	sub := channel.Subscribe("slow")

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			id := fmt.Sprintf("producer-%d", producer)
			for i := int64(1); i <= 500; i++ {
				_ = channel.Publish(ProgressUpdated{ID: id, Current: i, Total: 500})
			}
		}(p)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("publishers blocked on a subscriber that never reads")
	}

	latest := map[string]int64{}
	for _, event := range sub.Drain() {
		update := event.(ProgressUpdated)
		latest[update.ID] = update.Current
	}
	assert.Len(t, latest, 8)
	for id, current := range latest {
		assert.Equal(t, int64(500), current, id)
	}
}

func TestSubscription_NextHonoursContext(t *testing.T) {
	channel := NewChannel(8)
	sub := channel.Subscribe("test")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscription_CloseDetaches(t *testing.T) {
	channel := NewChannel(8)
	sub := channel.Subscribe("test")
	require.Equal(t, 1, channel.SubscriberCount())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, channel.SubscriberCount())
	require.NoError(t, channel.Publish(StateRequested{}))
	assert.Empty(t, sub.Drain())
}
