package in

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"focuskit/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxMessageBytes = 64 << 10
	sendBuffer      = 16
	hubWriteWait    = 5 * time.Second
)

// Hub relays every message from one connected surface to all others. It
// does not inspect envelopes; revision gating happens in each surface.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger.With().Str("component", "hub").Logger(),
		metrics:  m,
		clients:  map[*hubClient]struct{}{},
	}
}

func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.healthz)
	r.Get("/ws", h.serveWS)
	r.Handle("/metrics", h.metrics.Handler())
	return r
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": h.Clients()})
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	client := &hubClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(client)
	h.logger.Info().Str("remote", r.RemoteAddr).Int("clients", h.Clients()).Msg("surface connected")

	go h.writeLoop(client)
	defer func() {
		h.unregister(client)
		_ = conn.Close()
		h.logger.Info().Str("remote", r.RemoteAddr).Msg("surface disconnected")
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.relay(client, msg)
	}
}

func (h *Hub) writeLoop(client *hubClient) {
	for msg := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = client.conn.Close()
			return
		}
	}
}

// relay never blocks on a slow surface; it drops the message for that
// surface instead.
func (h *Hub) relay(from *hubClient, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client == from {
			continue
		}
		select {
		case client.send <- msg:
			h.metrics.SyncSnapshot("relayed")
		default:
			h.metrics.SyncSnapshot("dropped")
		}
	}
}

func (h *Hub) register(client *hubClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(client *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}
