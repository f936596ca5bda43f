package websocket

import (
	"context"
	"sync"
	"time"

	"facewatch/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 4
	writeWait       = 2 * time.Second
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// HubService fans rendered frames out to every connected viewer.
type HubService struct {
	clients    map[Conn]bool
	broadcast  chan []byte
	register   chan Conn
	unregister chan Conn
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan Conn),
		unregister: make(chan Conn),
		logger:     logger,
	}
}

// Serve runs the hub until ctx is cancelled, then disconnects every viewer.
func (h *HubService) Serve(ctx context.Context) error {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			for _, client := range h.snapshot() {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.BinaryMessage, message); err != nil {
					h.logger.Warning("Error sending frame to viewer: %v", err)
					h.remove(client)
				}
			}
		}
	}
}

func (h *HubService) String() string {
	return "viewer-hub"
}

// Register adds a viewer. It returns false when the hub is not running.
func (h *HubService) Register(ctx context.Context, client Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-ctx.Done():
		return false
	}
}

// Unregister removes and closes a viewer.
func (h *HubService) Unregister(ctx context.Context, client Conn) {
	select {
	case h.unregister <- client:
	case <-ctx.Done():
		client.Close()
	}
}

// Broadcast queues a frame for every viewer. When viewers lag behind the frame
// is dropped.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *HubService) snapshot() []Conn {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *HubService) remove(client Conn) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mutex.Unlock()

	if ok {
		client.Close()
		h.logger.Info("Viewer disconnected. Total: %d", total)
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}
