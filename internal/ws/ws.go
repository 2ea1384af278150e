// Package ws pushes upload, query and report events to browser clients.
package ws

import (
	"context"
	"log/slog"
	"sync"

	"nhooyr.io/websocket"
)

// StatusProviderFunc returns the current service status as JSON bytes.
type StatusProviderFunc func() ([]byte, error)

// Hub manages WebSocket connections and broadcasts messages to clients.
type Hub struct {
	clients        map[*Client]bool
	broadcast      chan envelope
	register       chan *Client
	unregister     chan *Client
	logger         *slog.Logger
	mu             sync.RWMutex
	statusProvider StatusProviderFunc
	originPatterns []string
}

// envelope is a broadcast scoped to one chat, or to all clients when chatID
// is empty.
type envelope struct {
	chatID string
	data   []byte
}

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	send   chan []byte
	conn   *websocket.Conn
	chatID string // guarded by hub.mu
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// SetStatusProvider sets the function called to get the status sent to new
// clients and on sync requests.
func (h *Hub) SetStatusProvider(fn StatusProviderFunc) {
	h.statusProvider = fn
}

// SetOriginPatterns sets the cross-origin hosts allowed to connect, matched
// with path.Match. Without patterns only same-origin clients are accepted.
func (h *Hub) SetOriginPatterns(patterns []string) {
	h.originPatterns = patterns
}

// Run starts the hub's event loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected")

		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if env.chatID != "" && client.chatID != "" && client.chatID != env.chatID {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- envelope{data: message}
}

// BroadcastChat sends a message to the clients following chatID and to the
// clients that follow every chat.
func (h *Hub) BroadcastChat(chatID string, msgType MessageType, payload any) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error("failed to create broadcast message", "type", msgType, "error", err)
		return
	}
	h.broadcast <- envelope{chatID: chatID, data: msg}
}

// BroadcastJSON broadcasts any JSON-serializable payload with the given message type.
func (h *Hub) BroadcastJSON(msgType MessageType, payload any) {
	h.BroadcastChat("", msgType, payload)
}

// BroadcastError broadcasts an error to all clients.
func (h *Hub) BroadcastError(errMsg string) {
	h.BroadcastJSON(MsgError, map[string]string{"message": errMsg})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe(c *Client, chatID string) {
	h.mu.Lock()
	c.chatID = chatID
	h.mu.Unlock()
	h.logger.Debug("websocket client subscribed", "chat_id", chatID)
}
