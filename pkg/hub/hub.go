package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-orion/internal/log"
)

// DefaultHistory is how many events Recent keeps.
const DefaultHistory = 100

// ErrStopped is returned when a client joins a hub whose Run has returned.
var ErrStopped = errors.New("hub: stopped")

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// mu guards clients for ClientCount; only Run mutates it.
	mu sync.RWMutex

	histMu  sync.Mutex
	history []Event
	histCap int

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// New creates a Hub keeping the last history events (DefaultHistory
// when history <= 0).
func New(name string, history int) *Hub {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Hub{
		name:       name,
		logger:     log.Component("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		histCap:    history,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every client's send channel. A hub cannot be restarted.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.stopOnce.Do(func() { close(h.done) })
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "clients", count)

		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// leave unregisters c. After Run returns there is nobody to receive, and
// Run has already closed c.send.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish records ev in the history and broadcasts it. ID and Time are
// filled in when empty.
func (h *Hub) Publish(ev Event) {
	ev.stamp(h.now())

	h.histMu.Lock()
	h.history = append(h.history, ev)
	if over := len(h.history) - h.histCap; over > 0 {
		h.history = append(h.history[:0:0], h.history[over:]...)
	}
	h.histMu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "error", err, "kind", ev.Kind)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "kind", ev.Kind)
	}
}

// Recent returns the recorded events, oldest first.
func (h *Hub) Recent() []Event {
	h.histMu.Lock()
	defer h.histMu.Unlock()
	out := make([]Event, len(h.history))
	copy(out, h.history)
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
