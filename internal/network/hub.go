// Package network exposes the engine to browsers: a websocket hub that
// pushes state snapshots and accepts commands, and a small HTTP API.
package network

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/MRamiBalles/medsim/internal/engine"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
	"github.com/MRamiBalles/medsim/internal/platform/optimization"
)

// StateMessage is the push frame sent after every engine mutation.
type StateMessage struct {
	Type  string          `json:"type"` // always "state"
	State engine.Snapshot `json:"state"`
}

// Hub maintains the set of active clients and fans snapshots out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	engine  *engine.Engine
	router  *CommandRouter
	config  *optimization.Config
	logger  *logger.Logger
	metrics *metrics.Collector
}

func NewHub(e *engine.Engine, cfg *optimization.Config, log *logger.Logger, m *metrics.Collector) *Hub {
	if cfg == nil {
		cfg = optimization.DefaultConfig()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, cfg.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		engine:     e,
		router:     NewCommandRouter(e, log),
		config:     cfg,
		logger:     log,
		metrics:    m,
	}
}

// Run processes registrations and broadcasts until ctx is done. It
// subscribes to the engine for the lifetime of the loop.
func (h *Hub) Run(ctx context.Context) {
	unsubscribe := h.engine.OnState(h.BroadcastState)
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("client connected", "clients", h.ClientCount())
			// New clients get the current state without waiting for a tick.
			if msg, err := encodeState(h.engine.Snapshot()); err == nil {
				h.trySend(client, msg)
			}
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", h.ClientCount())
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !h.trySend(client, message) {
					// Slow client: drop it rather than stall the fan-out.
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) trySend(c *Client, msg []byte) bool {
	select {
	case c.send <- msg:
		h.metrics.RecordWSMessage(false)
		return true
	default:
		return false
	}
}

// BroadcastState queues a snapshot for every connected client. It never
// blocks the engine: when the queue is full the frame is dropped and the
// next mutation carries fresher state anyway.
func (h *Hub) BroadcastState(s engine.Snapshot) {
	msg, err := encodeState(s)
	if err != nil {
		h.logger.Error("failed to encode snapshot", "err", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.metrics.RecordWSError()
		h.logger.Warn("broadcast queue full, dropping snapshot", "sim_sec", s.SimSec)
	}
}

// Full reports whether the hub has reached its client limit.
func (h *Hub) Full() bool {
	return h.config.MaxClients > 0 && h.ClientCount() >= h.config.MaxClients
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encodeState(s engine.Snapshot) ([]byte, error) {
	return json.Marshal(StateMessage{Type: "state", State: s})
}
