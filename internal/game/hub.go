package game

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/websocket"
)

const (
	BROADCAST_BUFFER = 256
	CLIENT_BUFFER    = 64
	WRITE_TIMEOUT    = 10 * time.Second
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	id      string
	conn    Conn
	send    chan []byte
	stopped chan struct{}
}

// Hub delivers events to connected websocket clients. It implements Sink.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan Event
	register   chan *Client
	unregister chan string
	done       chan struct{}
	mu         sync.RWMutex
	logger     *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan Event, BROADCAST_BUFFER),
		register:   make(chan *Client),
		unregister: make(chan string),
		done:       make(chan struct{}),
		logger:     logger.WithPrefix("hub"),
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.id]; ok {
				close(old.send)
			}
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()
			go client.writePump(h.logger)
			h.logger.Info("Client connected", "client", client.id, "total", count)

		case id := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[id]; ok {
				delete(h.clients, id)
				close(client.send)
				h.logger.Info("Client disconnected", "client", id, "total", len(h.clients))
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event.Message())
			if err != nil {
				h.logger.Error("Marshal error", "type", event.Type, "error", err)
				continue
			}

			h.mu.RLock()
			if event.ClientID != "" {
				if client, ok := h.clients[event.ClientID]; ok {
					h.deliver(client, data)
				}
			} else {
				for _, client := range h.clients {
					h.deliver(client, data)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// deliver never blocks; a client that cannot keep up loses the message.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("Client send buffer full, dropping message", "client", client.id)
	}
}

// Publish queues an event for delivery.
func (h *Hub) Publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", event.Type)
	}
}

// Send queues a unicast message for one client.
func (h *Hub) Send(clientID string, eventType EventType, data interface{}) {
	h.Publish(Event{Type: eventType, ClientID: clientID, Data: data})
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient adds a connection under clientID. Messages for the client
// are written by a dedicated goroutine so they keep their order. The returned
// channel is closed once that goroutine has stopped using conn.
func (h *Hub) RegisterClient(conn Conn, clientID string) <-chan struct{} {
	client := &Client{
		id:      clientID,
		conn:    conn,
		send:    make(chan []byte, CLIENT_BUFFER),
		stopped: make(chan struct{}),
	}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.stopped)
	}
	return client.stopped
}

func (h *Hub) UnregisterClient(clientID string) {
	select {
	case h.unregister <- clientID:
	case <-h.done:
	}
}

func (c *Client) writePump(logger *log.Logger) {
	defer close(c.stopped)
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Warn("Write error", "client", c.id, "error", err)
			return
		}
	}
}
