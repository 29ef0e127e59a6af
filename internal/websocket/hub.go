package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"socialsync-be/internal/observability"
	"socialsync-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "socialsync:turns"

// Hub tracks the open chat sockets of every session. A reply produced for a session is
// delivered to all of its sockets, on this instance and, through redis, on the others.
type Hub struct {
	// Registered clients: session id -> open sockets (several tabs may share a session)
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance delivery, optional
	rdb        *redis.Client
	instanceID string

	metrics *observability.Metrics
	logger  logger.ILogger
}

func NewHub(rdb *redis.Client, metrics *observability.Metrics, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		metrics:    metrics,
		logger:     log,
	}
}

// Run serves registrations until ctx ends, then closes every socket's send queue and
// waits for the redis subscription to stop.
func (h *Hub) Run(ctx context.Context) {
	var subscriber sync.WaitGroup
	if h.rdb != nil {
		subscriber.Add(1)
		go func() {
			defer subscriber.Done()
			h.subscribeToRedis(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for sessionID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
					h.metrics.ActiveSocketStreams.Dec()
				}
				delete(h.clients, sessionID)
			}
			h.mu.Unlock()
			subscriber.Wait()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]struct{})
			}
			h.clients[client.SessionID][client] = struct{}{}
			h.metrics.ActiveSocketStreams.Inc()
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				if _, found := clients[client]; found {
					delete(clients, client)
					close(client.Send)
					h.metrics.ActiveSocketStreams.Dec()
				}
				if len(clients) == 0 {
					delete(h.clients, client.SessionID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// add registers client. It reports false once the hub stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Send delivers data to every socket of sessionID.
func (h *Hub) Send(ctx context.Context, sessionID string, data []byte) {
	h.deliverLocal(sessionID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:    h.instanceID,
			SessionID: sessionID,
			Message:   data,
		})
		if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish to cluster", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}
}

// SendTo delivers data to a single socket, if it is still registered.
func (h *Hub) SendTo(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.SessionID][client]; ok {
		h.enqueue(client, data)
	}
}

// Count reports the open sockets of sessionID.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) deliverLocal(sessionID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		h.enqueue(client, data)
	}
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{
			"session_id": client.SessionID,
		})
	}
}

type clusterMessage struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg = m
		}

		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.instanceID {
			continue
		}
		h.deliverLocal(payload.SessionID, payload.Message)
	}
}
