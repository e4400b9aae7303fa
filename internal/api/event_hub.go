package api

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/internal/logging"
)

// Event kinds.
const (
	EventAppended   = "appended"
	EventSuperseded = "superseded"
)

// VerdictEvent announces a record stored in the ledger.
type VerdictEvent struct {
	Kind         string            `json:"kind"`
	VerdictID    core.VerdictID    `json:"verdict_id"`
	HypothesisID core.HypothesisID `json:"hypothesis_id"`
	FamilyID     core.FamilyID     `json:"family_id,omitempty"`
	Status       verdict.Status    `json:"status"`
	Revision     int               `json:"revision"`
	Supersedes   core.VerdictID    `json:"supersedes,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// NewVerdictEvent describes rec.
func NewVerdictEvent(kind string, rec *verdict.Record) VerdictEvent {
	return VerdictEvent{
		Kind:         kind,
		VerdictID:    rec.ID,
		HypothesisID: rec.HypothesisID,
		FamilyID:     rec.FamilyID,
		Status:       rec.Status,
		Revision:     rec.Revision,
		Supersedes:   rec.Supersedes,
		Timestamp:    rec.CreatedAt.Time(),
	}
}

type subscriber struct {
	hypothesis core.HypothesisID
	ch         chan VerdictEvent
}

// Hub fans verdict events out to server-sent event clients. Slow clients
// miss events rather than block the ledger.
type Hub struct {
	mu         sync.RWMutex
	clients    map[chan VerdictEvent]subscriber
	register   chan subscriber
	unregister chan chan VerdictEvent
	broadcast  chan VerdictEvent
	done       chan struct{}
	keepAlive  time.Duration
	logger     *zap.Logger
}

// NewHub creates a hub. Run must be started for events to flow.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[chan VerdictEvent]subscriber),
		register:   make(chan subscriber, 10),
		unregister: make(chan chan VerdictEvent, 10),
		broadcast:  make(chan VerdictEvent, 100),
		done:       make(chan struct{}),
		keepAlive:  30 * time.Second,
		logger:     logging.OrNop(logger).Named("events"),
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.clients[s.ch] = s
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.Int("clients", h.ClientCount()))

		case ch := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.RLock()
			for ch, s := range h.clients {
				if s.hypothesis != "" && s.hypothesis != ev.HypothesisID {
					continue
				}
				select {
				case ch <- ev:
				default:
					h.logger.Warn("client channel full, skipping event", zap.String("verdict_id", string(ev.VerdictID)))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for ch := range h.clients {
				delete(h.clients, ch)
				close(ch)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish queues an event without blocking.
func (h *Hub) Publish(ev VerdictEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("broadcast channel full, dropping event", zap.String("verdict_id", string(ev.VerdictID)))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeEvents streams verdict events, optionally only those of the
// hypothesis_id query parameter.
func (h *Hub) ServeEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := make(chan VerdictEvent, 10)
	select {
	case h.register <- subscriber{hypothesis: core.HypothesisID(c.Query("hypothesis_id")), ch: ch}:
	case <-h.done:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream closed"})
		return
	}
	defer func() {
		select {
		case h.unregister <- ch:
		case <-h.done:
		}
	}()

	// headers go out before the first event so clients see the stream open
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("verdict", ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
