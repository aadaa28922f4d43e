package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/midisession/internal/util"
)

// Tuning constants.
const (
	SubscriberBufferSize = 64              // per-subscriber event queue
	WriteTimeout         = 5 * time.Second // websocket write deadline
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var logger = util.Scoped("monitor")

// subscriber is one connected websocket client (private).
type subscriber struct {
	id     uuid.UUID
	conn   *websocket.Conn
	events chan Event
}

// Hub fans responder events out to websocket subscribers. Publish never
// blocks: a subscriber whose queue is full misses the event.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]*subscriber
	stats       *util.Stats
}

// NewHub creates a hub with no subscribers. Dropped events are counted in
// stats.EventsDropped; a nil stats gets a private counter set.
func NewHub(stats *util.Stats) *Hub {
	if stats == nil {
		stats = &util.Stats{}
	}
	return &Hub{
		subscribers: make(map[uuid.UUID]*subscriber),
		stats:       stats,
	}
}

// Publish queues ev for every subscriber.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		select {
		case sub.events <- ev:
		default:
			h.stats.EventsDropped.Add(1)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request to a websocket and streams events until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sub := &subscriber{
		id:     uuid.New(),
		conn:   conn,
		events: make(chan Event, SubscriberBufferSize),
	}
	h.add(sub)
	defer h.remove(sub.id)
	defer conn.Close()

	logger.Info("subscriber connected", "id", sub.id.String(), "remote", r.RemoteAddr, "subscribers", h.Subscribers())

	// Reads only serve to notice the close; subscribers never send anything.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-sub.events:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Warn("subscriber write failed", "id", sub.id.String(), "err", err)
				return
			}
		case <-gone:
			logger.Info("subscriber disconnected", "id", sub.id.String())
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.id] = sub
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

// ListenAndServe serves the hub at /events on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start monitor server: %w", err)
	}
	return h.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (h *Hub) Serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	srv := &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("listening", "addr", listener.Addr().String(), "path", "/events")
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor server: %w", err)
	}
	return nil
}
