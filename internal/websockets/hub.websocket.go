package websockets

import (
	"sync"
)

type Hub struct {
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	clients    map[string]*Client
	latest     *Message
	mutex      sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		clients:    make(map[string]*Client),
	}
}

func (h *Hub) run(m *Manager) {
	for {
		select {
		case client := <-h.register:
			m.registerClient(client)

		case client := <-h.unregister:
			m.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message, m)

		case <-h.stop:
			m.disconnectAll()
			return
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

func (h *Hub) join(client *Client) {
	select {
	case h.register <- client:
	case <-h.stop:
		close(client.send)
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

func (m *Manager) registerClient(client *Client) {
	log := m.log.Function("registerClient")

	m.hub.mutex.Lock()
	m.hub.clients[client.ID] = client
	latest := m.hub.latest
	m.hub.mutex.Unlock()

	// new clients start from the last known state
	if latest != nil {
		client.send <- *latest
	}

	log.Info("Client registered", "clientID", client.ID)
}

// unregisterClient is idempotent; both pumps unregister on exit
func (m *Manager) unregisterClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	if _, ok := m.hub.clients[client.ID]; !ok {
		return
	}

	delete(m.hub.clients, client.ID)
	close(client.send)

	m.log.Function("unregisterClient").Info("Client unregistered", "clientID", client.ID)
}

func (m *Manager) disconnectAll() {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	for id, client := range m.hub.clients {
		delete(m.hub.clients, id)
		close(client.send)
	}
}

// broadcastMessage never blocks the hub. A client too slow to keep up only
// misses intermediate snapshots; the next one carries the full state.
func (h *Hub) broadcastMessage(message Message, m *Manager) {
	log := m.log.Function("broadcastMessage")

	h.mutex.Lock()
	h.latest = &message
	h.mutex.Unlock()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	sentCount := 0
	for clientID, client := range h.clients {
		select {
		case client.send <- message:
			sentCount++
		default:
			log.Warn("Client send channel full, dropping snapshot", "clientID", clientID)
		}
	}

	log.Debug("Broadcast complete", "messageID", message.ID, "sentTo", sentCount, "totalClients", len(h.clients))
}
