package game

import (
	"encoding/json"
	"sync"

	"github.com/ggiovanne/coup/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Hub maps player identities to live websocket clients. It is the
// production Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	metrics *metrics.Metrics
}

func NewHub(mt *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		metrics: mt,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ConnectionsActive.Inc()
	}
}

// Unregister removes the client and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.closeSend()
	if h.metrics != nil {
		h.metrics.ConnectionsActive.Dec()
	}
}

func (h *Hub) Publish(playerID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("player", playerID).Msg("[Hub.Publish] Failed to encode message")
		return
	}

	h.mu.RLock()
	c := h.clients[playerID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.enqueue(data)
}

func (h *Hub) PublishAll(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("[Hub.PublishAll] Failed to encode message")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}
