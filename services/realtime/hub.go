// Package realtime pushes discussion events to websocket subscribers of a subject.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/discussion"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type (
	client struct {
		hub       *Hub
		conn      *websocket.Conn
		subjectID int
		send      chan []byte
	}

	message struct {
		subjectID int
		data      []byte
	}

	// Hub keeps the subscribers of every subject. Only Run touches the subscriber sets.
	Hub struct {
		mu         sync.RWMutex
		clients    map[int]map[*client]bool // {subject id: clients}
		broadcast  chan message
		register   chan *client
		unregister chan *client
		done       chan struct{}
		logger     core.Logger
	}
)

var _ discussion.Publisher = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		clients:    make(map[int]map[*client]bool),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is done, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for subjectID, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, subjectID)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[c.subjectID]
			if !ok {
				set = make(map[*client]bool)
				h.clients[c.subjectID] = set
			}
			set[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients[msg.subjectID] {
				select {
				case c.send <- msg.data:
				default: // too slow, drop it
					h.remove(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(c *client) {
	set := h.clients[c.subjectID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.subjectID)
	}
}

// Subscribers is the number of live connections following a subject.
func (h *Hub) Subscribers(subjectID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[subjectID])
}

// Publish sends a discussion event to the subscribers of a subject. It never blocks on slow clients.
func (h *Hub) Publish(subjectID int, ev discussion.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error(fmt.Sprintf("realtime.Publish: %v", err), err)
		return
	}
	select {
	case h.broadcast <- message{subjectID: subjectID, data: data}:
	case <-h.done:
	}
}

// ServeWS upgrades the request and subscribes the connection to a subject.
// The caller has already checked that the user may view the subject.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, subjectID int) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, conn: conn, subjectID: subjectID, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}
	go c.writePump()
	go c.readPump()
	return nil
}

// readPump only keeps the connection alive: subscribers never send anything meaningful.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(fmt.Sprintf("realtime.readPump: %v", err), err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
