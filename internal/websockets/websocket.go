package websockets

import (
	"context"
	"time"

	"statushub/internal/status"
	"statushub/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	MESSAGE_TYPE_PING     = "ping"
	MESSAGE_TYPE_PONG     = "pong"
	MESSAGE_TYPE_SNAPSHOT = "snapshot"
	MESSAGE_TYPE_REFRESH  = "refresh"
	MESSAGE_TYPE_ERROR    = "error"
	PING_INTERVAL         = 30 * time.Second
	PONG_TIMEOUT          = 60 * time.Second
	WRITE_TIMEOUT         = 10 * time.Second
	MAX_MESSAGE_SIZE      = 64 * 1024
	SEND_CHANNEL_SIZE     = 16
	// Channels
	STATUS_CHANNEL = "status"
)

type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Channel   string    `json:"channel,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Client struct {
	ID         string
	Connection *websocket.Conn
	Manager    *Manager
	send       chan Message
}

// SnapshotSource is satisfied by the status aggregator
type SnapshotSource interface {
	Subscribe(ctx context.Context) (*status.SnapshotSubscription, error)
	RequestCurrentState()
}

// Manager pushes status snapshots to connected UIs. Clients are read-only:
// the only inbound messages are ping and refresh.
type Manager struct {
	hub    *Hub
	source SnapshotSource
	log    logger.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func New(ctx context.Context, source SnapshotSource) (*Manager, error) {
	log := logger.New("websockets")

	sub, err := source.Subscribe(ctx)
	if err != nil {
		return nil, log.Function("New").Err("failed to subscribe to snapshots", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	manager := &Manager{
		hub:    newHub(),
		source: source,
		log:    log,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)
	go manager.forwardSnapshots(runCtx, sub)

	return manager, nil
}

func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")

	client := newClient(m, c)
	log.Info("Client connected", "clientID", client.ID)

	m.hub.join(client)
	defer func() {
		log.Info("Client disconnected", "clientID", client.ID)
		m.hub.leave(client)
		if err := c.Close(); err != nil {
			log.Er("failed to close connection", err)
		}
	}()

	go client.readPump()
	client.writePump()
}

func newClient(m *Manager, c *websocket.Conn) *Client {
	return &Client{
		ID:         uuid.New().String(),
		Connection: c,
		Manager:    m,
		send:       make(chan Message, SEND_CHANNEL_SIZE),
	}
}

// ClientCount returns the number of connected clients
func (m *Manager) ClientCount() int {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()
	return len(m.hub.clients)
}

func (m *Manager) forwardSnapshots(ctx context.Context, sub *status.SnapshotSubscription) {
	log := m.log.Function("forwardSnapshots")
	defer close(m.done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.C():
			if !ok {
				log.Info("Snapshot stream closed")
				return
			}
			m.broadcastSnapshot(snapshot)
		}
	}
}

func (m *Manager) broadcastSnapshot(snapshot status.Snapshot) {
	message := Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_SNAPSHOT,
		Channel:   STATUS_CHANNEL,
		Data:      snapshot,
		Timestamp: time.Now(),
	}

	select {
	case m.hub.broadcast <- message:
	case <-m.hub.stop:
	}
}

// Close stops forwarding and disconnects every client
func (m *Manager) Close() {
	m.cancel()
	<-m.done
	m.hub.shutdown()
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer func() {
		c.Manager.hub.leave(c)
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
			log.Er("failed to set read deadline in pong handler", err, "clientID", c.ID)
		}
		return nil
	})

	for {
		var message Message
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			break
		}

		c.routeMessage(message)
	}
}

func (c *Client) routeMessage(message Message) {
	log := c.Manager.log.Function("routeMessage")

	switch message.Type {
	case MESSAGE_TYPE_PING:
		c.enqueue(Message{ID: uuid.New().String(), Type: MESSAGE_TYPE_PONG, Timestamp: time.Now()})
	case MESSAGE_TYPE_REFRESH:
		c.Manager.source.RequestCurrentState()
	default:
		log.Warn("Unknown message type", "clientID", c.ID, "type", message.Type)
		c.enqueue(Message{
			ID:        uuid.New().String(),
			Type:      MESSAGE_TYPE_ERROR,
			Data:      map[string]any{"reason": "unsupported message type"},
			Timestamp: time.Now(),
		})
	}
}

func (c *Client) enqueue(message Message) {
	defer func() {
		// send is closed once the hub unregisters the client
		_ = recover()
	}()

	select {
	case c.send <- message:
	default:
		c.Manager.log.Function("enqueue").Warn("Client send channel full, dropping message", "clientID", c.ID)
	}
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID, "type", message.Type)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
