package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// clientQueueSize bounds the per-connection outbound queue. Events
	// beyond it are dropped, keeping delivery at-most-once for slow readers.
	clientQueueSize = 32

	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second
)

// hubClient owns all writes to one connection. gorilla/websocket allows a
// single concurrent writer, so every publish goes through the send queue
// and the pump goroutine.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func (c *hubClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("failed to send event to websocket client", "error", err)
			}
		}
	}
}

// Hub manages WebSocket connections and delivers events to every
// connection subscribed to a channel.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*hubClient
	channels map[string]map[*websocket.Conn]*hubClient
	closed   bool
}

// NewHub creates a new connection hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*websocket.Conn]*hubClient),
		channels: make(map[string]map[*websocket.Conn]*hubClient),
	}
}

// Subscribe registers a WebSocket connection on a channel, starting its
// writer on first subscription.
func (h *Hub) Subscribe(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	c, ok := h.clients[conn]
	if !ok {
		c = &hubClient{
			conn: conn,
			send: make(chan []byte, clientQueueSize),
			done: make(chan struct{}),
		}
		h.clients[conn] = c
		go c.writePump()
	}

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*websocket.Conn]*hubClient)
	}
	h.channels[channel][conn] = c
}

// Unsubscribe removes a WebSocket connection from all channels and stops
// its writer.
func (h *Hub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	for channel, conns := range h.channels {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
	close(c.done)
}

// Publish queues an event for all subscribers of a channel. The send never
// blocks: a subscriber whose queue is full misses the event, and the next
// publish proceeds regardless.
func (h *Hub) Publish(ctx context.Context, channel string, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*hubClient, 0, len(h.channels[channel]))
	for _, c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	stamped := *event
	stamped.Channel = channel

	// Serialize once per channel.
	data, err := json.Marshal(&stamped)
	if err != nil {
		return err
	}

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			slog.Warn("dropping event for slow websocket client",
				"channel", channel,
				"event_type", event.Type,
			)
		}
	}
	return nil
}

// Close stops every writer. Connections themselves close when their read
// loops exit.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for conn, c := range h.clients {
		close(c.done)
		delete(h.clients, conn)
	}
	h.channels = make(map[string]map[*websocket.Conn]*hubClient)
	return nil
}

// ConnectionCount returns the number of active connections on a channel.
func (h *Hub) ConnectionCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.channels[channel])
}
