package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/metrics"
)

const defaultSendBuffer = 64

// Hub fans events out to connected clients by topic.
type Hub struct {
	sendBuffer int

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

// NewHub creates a hub from config.
func NewHub(cfg *config.RealtimeConfig) *Hub {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Hub{
		sendBuffer: buffer,
		clients:    make(map[string]*Client),
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs the client until
// it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket accept failed")
		return
	}

	client := newClient(conn, h, h.sendBuffer)
	if !h.add(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	payload, _ := json.Marshal(&ConnectedPayload{ClientID: client.ID})
	_ = client.Send(&Message{Type: MessageTypeConnected, Payload: payload})

	log.Debug().Str("client_id", client.ID).Msg("Realtime client connected")
	client.Run()
	log.Debug().Str("client_id", client.ID).Msg("Realtime client disconnected")
}

// Publish sends an event to every client subscribed to its topic.
func (h *Hub) Publish(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", event.Topic).Msg("Failed to marshal realtime event")
		return
	}

	msg := &Message{Type: MessageTypeEvent, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.subscribed(event.Topic) {
			_ = client.Send(msg)
		}
	}
}

// ConnectionCount reports the number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects all clients and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.closeForShutdown()
	}
	metrics.UpdateRealtimeStats(0)
}

func (h *Hub) add(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[client.ID] = client
	metrics.UpdateRealtimeStats(len(h.clients))
	return true
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
	metrics.UpdateRealtimeStats(len(h.clients))
}
