package realtime

import (
	"context"
	"sync/atomic"

	"github.com/EduShopX/edushop/internal/app/metrics"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Hub tracks the live connections of this process. Fan-out between
// connections goes through Channels; the hub only owns their lifecycle.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      int64
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the client set until ctx is cancelled, then closes every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			atomic.AddInt64(&h.count, 1)
			metrics.WebsocketOpened()
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				atomic.AddInt64(&h.count, -1)
				metrics.WebsocketClosed()
			}
		case <-ctx.Done():
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
				metrics.WebsocketClosed()
			}
			atomic.StoreInt64(&h.count, 0)
			h.log.Info("websocket hub stopped")
			return
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

// Connections reports how many websockets are open on this process.
func (h *Hub) Connections() int {
	return int(atomic.LoadInt64(&h.count))
}
