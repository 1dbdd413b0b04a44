package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/smilemakc/avtrace/internal/domain"
)

// Hub fans out DecisionLog entries, as they're produced by a run, to every
// client subscribed to that run. It implements verify.Sink.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	byRunID map[string]map[*Client]bool

	mu sync.RWMutex
}

type broadcastMsg struct {
	runID string
	event *WSEvent
}

// NewHub builds an unstarted Hub; call Run in a goroutine before use.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		byRunID:    make(map[string]map[*Client]bool),
	}
}

// Run is the hub's event loop; it blocks until the hub's channels are
// abandoned, so callers run it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)

	for runID, set := range h.byRunID {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byRunID, runID)
		}
	}
}

func (h *Hub) deliver(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.byRunID[msg.runID] {
		select {
		case c.send <- msg.event:
		default:
			log.Warn().Str("client_id", c.id).Msg("dropping decision log event for slow websocket client")
		}
	}
}

// Subscribe adds c to the set of clients receiving events for runID.
func (h *Hub) Subscribe(c *Client, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.byRunID[runID] == nil {
		h.byRunID[runID] = make(map[*Client]bool)
	}
	h.byRunID[runID][c] = true
}

// Unsubscribe removes c from runID's subscriber set.
func (h *Hub) Unsubscribe(c *Client, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.byRunID[runID]; ok {
		delete(set, c)
	}
}

// Publish implements verify.Sink: it broadcasts entry to every client
// subscribed to runID.
func (h *Hub) Publish(runID string, entry domain.DecisionLog) {
	select {
	case h.broadcast <- &broadcastMsg{runID: runID, event: NewDecisionEvent(runID, entry)}:
	default:
		log.Warn().Str("run_id", runID).Msg("hub broadcast channel full, dropping decision log event")
	}
}
