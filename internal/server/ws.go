package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/serrrfirat/iso-civ-sub000/internal/game/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Spectator feed; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn   *websocket.Conn
	gameID string
	send   chan []byte
}

// Hub fans published game events out to connected spectators. It registers
// itself as a bus subscriber and forwards every event whose game id matches
// the client's subscription as JSON.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	logger  zerolog.Logger
}

// NewHub creates a hub subscribed to the bus.
func NewHub(bus *events.EventBus, logger zerolog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger.With().Str("component", "ws_hub").Logger(),
	}
	bus.Subscribe(h)
	return h
}

// ID implements events.Subscriber.
func (h *Hub) ID() string { return "ws_hub" }

// InterestedIn implements events.Subscriber; the hub forwards everything.
func (h *Hub) InterestedIn(eventType string) bool { return true }

// HandleEvent implements events.Subscriber.
func (h *Hub) HandleEvent(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("type", ev.Type()).Msg("Failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.gameID != "" && c.gameID != ev.GameID() {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop it rather than stall the turn.
			h.drop(c)
		}
	}
}

// ServeWS upgrades the request and streams events for gameID until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, gameID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, gameID: gameID, send: make(chan []byte, 64)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug().Str("game", gameID).Str("remote", conn.RemoteAddr().String()).Msg("Spectator connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) writeLoop(c *wsClient) {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	c.conn.Close()
}

// readLoop discards inbound frames; it exists to notice disconnects.
func (h *Hub) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	h.drop(c)
	h.mu.Unlock()
}

// drop removes a client. Caller holds h.mu.
func (h *Hub) drop(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ClientCount reports connected spectators, for tests and diagnostics.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
