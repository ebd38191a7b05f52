package websockets

import (
	"context"
	"testing"
	"time"

	"statushub/internal/events"
	"statushub/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *events.Channel) {
	t.Helper()

	channel := events.NewChannel(64)
	opts := status.DefaultOptions()
	opts.DebounceWindow = 5 * time.Millisecond
	aggregator := status.NewAggregator(channel, opts)
	aggregator.Start()

	manager, err := New(context.Background(), aggregator)
	require.NoError(t, err)

	t.Cleanup(func() {
		manager.Close()
		_ = aggregator.Stop()
		_ = channel.Close()
	})
	return manager, channel
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()

	select {
	case message, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		return message
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no message received")
		return Message{}
	}
}

func hasLatest(m *Manager) bool {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()
	return m.hub.latest != nil
}

func TestManager_NewClientReceivesLatestSnapshot(t *testing.T) {
	manager, _ := newTestManager(t)
	require.Eventually(t, func() bool { return hasLatest(manager) }, 2*time.Second, 5*time.Millisecond)

	client := newClient(manager, nil)
	manager.hub.join(client)

	message := receive(t, client)
	assert.Equal(t, MESSAGE_TYPE_SNAPSHOT, message.Type)
	assert.Equal(t, STATUS_CHANNEL, message.Channel)
	_, ok := message.Data.(status.Snapshot)
	assert.True(t, ok)
	assert.Equal(t, 1, manager.ClientCount())
}

func TestManager_BroadcastsProgress(t *testing.T) {
	manager, channel := newTestManager(t)
	require.Eventually(t, func() bool { return hasLatest(manager) }, 2*time.Second, 5*time.Millisecond)

	client := newClient(manager, nil)
	manager.hub.join(client)
	receive(t, client)

	require.NoError(t, channel.Publish(events.ProgressUpdated{ID: "download", Current: 5, Total: 10}))

	require.Eventually(t, func() bool {
		select {
		case message := <-client.send:
			snapshot := message.Data.(status.Snapshot)
			return len(snapshot.Progress) == 1 && snapshot.Progress[0].Current == 5
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClient_RouteMessage(t *testing.T) {
	manager, _ := newTestManager(t)
	client := newClient(manager, nil)

	client.routeMessage(Message{Type: MESSAGE_TYPE_PING})
	assert.Equal(t, MESSAGE_TYPE_PONG, receive(t, client).Type)

	client.routeMessage(Message{Type: "subscribe"})
	assert.Equal(t, MESSAGE_TYPE_ERROR, receive(t, client).Type)
}

func TestManager_LeaveAndClose(t *testing.T) {
	manager, _ := newTestManager(t)

	client := newClient(manager, nil)
	manager.hub.join(client)
	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	manager.hub.leave(client)
	manager.hub.leave(client)
	require.Eventually(t, func() bool { return manager.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// a closed client tolerates late enqueues
	client.routeMessage(Message{Type: MESSAGE_TYPE_PING})

	other := newClient(manager, nil)
	manager.hub.join(other)
	manager.Close()

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-other.send:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, manager.ClientCount())
}
