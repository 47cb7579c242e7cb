// internal/events/hub.go
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"modelmart-service/internal/domain/payment"

	"go.uber.org/zap"
)

// Hub fans reconciliation audit events out to connected operator dashboards.
// Payment failures are operator-visible only; this is the live half of that
// surface, next to the persisted audit table.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	logger *zap.Logger
}

// Envelope is the wire format pushed to subscribers.
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every connected client. Intended to run in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("ops client connected", zap.Int64("identity_id", client.identityID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the hub.
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishAudit broadcasts one reconciliation audit event.
func (h *Hub) PublishAudit(ev payment.AuditEvent) {
	h.publish("payment_audit", ev)
}

// PublishQuotaDenial broadcasts a quota denial for live rate-limit dashboards.
func (h *Hub) PublishQuotaDenial(callerID, modelID int64, retryAfter int) {
	h.publish("quota_denied", map[string]interface{}{
		"caller_id":   callerID,
		"model_id":    modelID,
		"retry_after": retryAfter,
	})
}

func (h *Hub) publish(eventType string, payload interface{}) {
	data, err := json.Marshal(Envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal ops event", zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("ops event dropped, broadcast buffer full", zap.String("type", eventType))
	}
}
