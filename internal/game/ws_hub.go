// Package game — WebSocket hub for room snapshot broadcasting.
package game

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tickwars/session-engine/internal/metrics"
	"github.com/tickwars/session-engine/internal/model"
	"github.com/tickwars/session-engine/internal/roomcode"
)

// roomMessage is a snapshot queued for delivery to one room's subscribers.
type roomMessage struct {
	room    string
	version uint64
	data    []byte
}

// wsClient wraps a connection with a write lock: gorilla/websocket allows
// at most one concurrent writer per connection, and the hub loop's
// broadcasts race with the keepalive ping goroutine otherwise.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

type subscription struct {
	room   string
	client *wsClient
}

// WSHub manages WebSocket subscriptions keyed by room code and pushes the
// full room document to every subscriber whenever it changes. A single
// event loop drains the broadcast channel and delivers snapshots with
// strictly increasing versions per room: a snapshot that was enqueued after
// a newer commit's snapshot is dropped, so subscribers observe room states
// in commit order.
type WSHub struct {
	rooms      map[string]map[*wsClient]bool
	lastSent   map[string]uint64 // highest version delivered per room
	broadcast  chan roomMessage
	register   chan subscription
	unregister chan subscription
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		rooms:      make(map[string]map[*wsClient]bool),
		lastSent:   make(map[string]uint64),
		broadcast:  make(chan roomMessage, 256),
		register:   make(chan subscription),
		unregister: make(chan subscription),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			clients, ok := h.rooms[sub.room]
			if !ok {
				clients = make(map[*wsClient]bool)
				h.rooms[sub.room] = clients
			}
			clients[sub.client] = true
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client subscribed", "room", sub.room)

		case sub := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[sub.room]; ok {
				if _, ok := clients[sub.client]; ok {
					delete(clients, sub.client)
					sub.client.conn.Close()
					metrics.WebSocketClients.Dec()
				}
				if len(clients) == 0 {
					delete(h.rooms, sub.room)
					delete(h.lastSent, sub.room)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			if msg.version <= h.lastSent[msg.room] {
				// A newer snapshot already went out; delivering this one
				// would show the room moving backwards.
				h.mu.Unlock()
				continue
			}
			h.lastSent[msg.room] = msg.version
			clients := h.rooms[msg.room]
			for client := range clients {
				if err := client.write(websocket.TextMessage, msg.data); err != nil {
					client.conn.Close()
					delete(clients, client)
					metrics.WebSocketClients.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastRoom queues the room snapshot for all of that room's subscribers.
// The room version travels with the payload so the hub loop can discard
// snapshots that were overtaken by a later commit.
func (h *WSHub) BroadcastRoom(r *model.Room) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- roomMessage{room: r.ID, version: r.Version, data: data}:
	default:
		// Drop if buffer full to avoid blocking trade execution.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws?room={code}.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if err := roomcode.Validate(room); err != nil {
		http.Error(w, "invalid or missing room parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	sub := subscription{room: room, client: &wsClient{conn: conn}}
	h.register <- sub

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- sub }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.rooms[room][sub.client]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := sub.client.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
