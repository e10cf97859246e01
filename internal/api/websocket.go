package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"mage-defense/internal/config"
	"mage-defense/internal/control"
	"mage-defense/internal/game"

	"github.com/gorilla/websocket"
)

const (
	// SnapshotInterval is how often the full snapshot is pushed to clients
	SnapshotInterval = 100 * time.Millisecond // 10 updates per second

	writeTimeout   = time.Second
	maxInboundSize = 1024
)

// WSEngine is what the hub needs from the game engine.
type WSEngine interface {
	GetSnapshot() *game.GameSnapshot
	Subscribe(fn func(game.Event))
}

// CommandSink accepts parsed client commands without blocking.
type CommandSink interface {
	Enqueue(cmd control.Command) bool
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// wsMessage is the frame format sent to clients
type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex

	connLimiter *ConnectionLimiter

	upgrader websocket.Upgrader
	commands CommandSink
}

// NewWebSocketHub creates a new hub with connection limiting.
// Inbound frames are parsed as commands and handed to commands, which may be nil.
func NewWebSocketHub(limits config.ResourceLimits, origins []string, commands CommandSink) *WebSocketHub {
	if origins == nil {
		origins = DefaultAllowedOrigins
	}

	h := &WebSocketHub{
		clients:     make(map[*websocket.Conn]*wsClient),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *wsClient),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		connLimiter: NewConnectionLimiter(limits),
		commands:    commands,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, origins) {
				return true
			}

			// Log rejected origin for security monitoring
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}

	return h
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes every connection.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn, client := range h.clients {
				h.connLimiter.Release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.remove(conn)
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			var failed []*websocket.Conn

			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					h.remove(conn)
				}
				count := len(h.clients)
				h.mu.Unlock()
				UpdateWSConnections(count)
			}
			IncrementWSMessages()
		}
	}
}

// remove must be called with h.mu held.
func (h *WebSocketHub) remove(conn *websocket.Conn) {
	if client, ok := h.clients[conn]; ok {
		// Release the connection slot for this IP
		h.connLimiter.Release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	jsonBytes, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop forwards engine events as they happen and pushes the
// latest snapshot every SnapshotInterval until ctx is cancelled.
// Tick boundaries are left out; the snapshot already carries the tick number.
func (h *WebSocketHub) StartBroadcastLoop(ctx context.Context, engine WSEngine) {
	engine.Subscribe(func(ev game.Event) {
		if ev.Type == game.EventTypeTick || h.ClientCount() == 0 {
			return
		}
		h.Broadcast("game:event", ev)
	})

	ticker := time.NewTicker(SnapshotInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h.ClientCount() == 0 {
					continue
				}
				h.Broadcast("game:snapshot", engine.GetSnapshot())
			}
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get client IP for rate limiting
	ip := GetClientIP(r)

	if reason, ok := h.connLimiter.Acquire(ip); !ok {
		log.Printf("⚠️ WebSocket connection from %s rejected: %s", ip, reason)
		RecordConnectionRejected(reason)
		if reason == RejectTotalLimit {
			http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		} else {
			http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		}
		return
	}

	// Upgrade to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.connLimiter.Release(ip) // Release the slot we reserved
		return
	}

	// Register the connection
	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.done:
		h.connLimiter.Release(ip)
		conn.Close()
		return
	}

	// Read commands from the client
	go h.readLoop(conn, ip)
}

// readLoop parses inbound frames as commands until the connection fails.
func (h *WebSocketHub) readLoop(conn *websocket.Conn, ip string) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()

	conn.SetReadLimit(maxInboundSize)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := control.Parse(string(message))
		if err != nil {
			RecordWSCommand("invalid")
			continue
		}
		cmd.ClientID = ip

		if h.commands == nil || !h.commands.Enqueue(cmd) {
			RecordWSCommand("dropped")
			continue
		}
		RecordWSCommand("queued")
	}
}
