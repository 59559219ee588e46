package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"robo-backend/internal/models"
)

// EventsChannel is the Redis pub/sub channel used when a relay is configured.
const EventsChannel = "robo:events"

const (
	writeWait = 5 * time.Second

	// eventBacklog bounds events waiting for delivery; Publish drops
	// events beyond it rather than blocking its caller.
	eventBacklog = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes assistant events to every connected browser. With a Redis
// client, events travel through pub/sub so several server processes can
// share one stream; without one they are broadcast in-process.
//
// Publish never blocks: events are queued and delivered by one hub
// goroutine, so a slow browser cannot stall speech or request handling.
type Hub struct {
	mu          sync.Mutex
	connections map[uuid.UUID]*websocket.Conn
	redisClient *redis.Client

	events    chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		connections: make(map[uuid.UUID]*websocket.Conn),
		redisClient: redisClient,
		events:      make(chan []byte, eventBacklog),
		quit:        make(chan struct{}),
	}
	go h.run()
	return h
}

// Start relays Redis events until ctx ends. It is a no-op without Redis.
func (h *Hub) Start(ctx context.Context) {
	if h.redisClient == nil {
		return
	}
	go h.subscribeToPubSub(ctx)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	id := uuid.New()
	h.registerConnection(id, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(id uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[id] = conn
	log.Debug("WebSocket connected", "conn", id, "total", len(h.connections))
}

func (h *Hub) unregisterConnection(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.connections[id]; ok {
		conn.Close()
		delete(h.connections, id)
		log.Debug("WebSocket disconnected", "conn", id)
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Publish implements the notifier used by the speech worker, the capture
// gate and the handlers.
func (h *Hub) Publish(event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error("Failed to encode event", "type", event.Type, "err", err)
		return
	}

	select {
	case h.events <- data:
	default:
		log.Warn("Event backlog full, dropping event", "type", event.Type)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			return
		case data := <-h.events:
			h.deliver(data)
		}
	}
}

// deliver relays through Redis when configured, falling back to the local
// connections if the publish fails.
func (h *Hub) deliver(data []byte) {
	if h.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		err := h.redisClient.Publish(ctx, EventsChannel, string(data)).Err()
		if err == nil {
			return
		}
		log.Warn("Redis publish failed, broadcasting locally", "err", err)
	}
	h.broadcast(data)
}

func (h *Hub) subscribeToPubSub(ctx context.Context) {
	pubsub := h.redisClient.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast([]byte(msg.Payload))
		}
	}
}

// broadcast writes under the hub lock; gorilla connections allow only one
// concurrent writer.
func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("Dropping websocket client", "conn", id, "err", err)
			conn.Close()
			delete(h.connections, id)
		}
	}
}

// Close stops delivery and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.connections {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.connections, id)
	}
}
