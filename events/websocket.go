package events

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The back office runs on a trusted local network.
		return true
	},
}

// Hub relays bus events to connected UI clients over websocket so balance
// displays and status badges know to re-read derived state.
type Hub struct {
	bus    *Bus
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub(bus *Bus, logger *logrus.Logger) *Hub {
	return &Hub{
		bus:     bus,
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Run consumes the bus until the subscription is cancelled. Call in its own
// goroutine.
func (h *Hub) Run() func() {
	ch, cancel := h.bus.Subscribe(64)
	go func() {
		for evt := range ch {
			h.broadcast(evt)
		}
	}()
	return cancel
}

func (h *Hub) broadcast(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(evt); err != nil {
			h.logger.WithField("remote", conn.RemoteAddr().String()).
				Warnf("dropping websocket client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Serve upgrades an HTTP request into a change-feed connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain reads; clients only listen but the connection needs its control
	// frames processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				delete(h.clients, conn)
				h.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}
