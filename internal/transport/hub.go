package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skomatsu/stella/pkg/logger"
)

// MessageHandler receives every parsed inbound message. Implementations
// must not block: long-running work is started on its own goroutine.
type MessageHandler interface {
	HandleMessage(client *Client, msg *Message)
}

// Client represents one connected avatar front-end
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan *Message
	hub       *Hub
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
}

// ID returns the client's connection identifier
func (c *Client) ID() string {
	return c.id
}

// Hub owns the kiosk WebSocket connection. Exactly one front-end is
// active at a time: a new connection supersedes the previous one.
type Hub struct {
	mu         sync.RWMutex
	active     *Client
	register   chan *Client
	unregister chan *Client
	outbound   chan *Message
	upgrader   websocket.Upgrader
	handler    MessageHandler
	logger     *logger.Logger

	// idleReset pokes onIdle when no client traffic arrives for the
	// interval. Zero disables it. The timer lives entirely on the Run
	// goroutine; read pumps report traffic through activity.
	idleReset time.Duration
	onIdle    func()
	idleTimer *time.Timer
	activity  chan struct{}
}

// NewHub creates a hub. idleReset of zero disables idle callbacks.
func NewHub(idleReset time.Duration, log *logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan *Message, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Kiosk runs on the same machine
			},
		},
		idleReset: idleReset,
		activity:  make(chan struct{}, 1),
		logger:    log.Named("transport"),
	}
}

// SetMessageHandler sets the handler for inbound messages
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.handler = handler
}

// SetIdleFunc sets the callback fired after idleReset without traffic
func (h *Hub) SetIdleFunc(fn func()) {
	h.onIdle = fn
}

// Run drives registration and outbound delivery. Call in a goroutine.
func (h *Hub) Run() {
	h.logger.Info("Starting WebSocket hub")

	if h.idleReset > 0 {
		h.idleTimer = time.NewTimer(h.idleReset)
		defer h.idleTimer.Stop()
	}

	for {
		var idleC <-chan time.Time
		if h.idleTimer != nil {
			idleC = h.idleTimer.C
		}

		select {
		case client := <-h.register:
			h.mu.Lock()
			previous := h.active
			h.active = client
			h.mu.Unlock()
			if previous != nil {
				h.logger.Warn("New client connected, superseding the previous connection",
					logger.String("previous_id", previous.id),
					logger.String("client_id", client.id))
				previous.Close()
			}
			h.logger.Info("Client connected", logger.String("client_id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.active == client {
				h.active = nil
			}
			h.mu.Unlock()
			client.Close()
			h.logger.Info("Client disconnected", logger.String("client_id", client.id))

		case message := <-h.outbound:
			h.mu.RLock()
			client := h.active
			h.mu.RUnlock()
			if client == nil {
				h.logger.Warn("No client connected, dropping outbound message",
					logger.String("type", message.Type))
				continue
			}
			if !client.enqueue(message) {
				h.logger.Warn("Client send buffer full, dropping message",
					logger.String("client_id", client.id),
					logger.String("type", message.Type))
			}

		case <-h.activity:
			if h.idleTimer != nil {
				if !h.idleTimer.Stop() {
					select {
					case <-h.idleTimer.C:
					default:
					}
				}
				h.idleTimer.Reset(h.idleReset)
			}

		case <-idleC:
			if h.onIdle != nil {
				h.onIdle()
			}
			h.idleTimer.Reset(h.idleReset)
		}
	}
}

// HandleConnection upgrades an HTTP request to the kiosk connection
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan *Message, 64),
		hub:       h,
		closeChan: make(chan struct{}),
	}

	h.register <- client

	go client.readPump()
	go client.writePump()
}

// Send queues a message for the active client. Messages sent while no
// client is connected are dropped with a warning.
func (h *Hub) Send(message *Message) {
	h.outbound <- message
}

// Connected reports whether a front-end is currently attached
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active != nil
}

// touchIdleTimer reports client traffic to the Run loop, which owns
// the idle timer. A signal already pending is as good as a new one.
func (h *Hub) touchIdleTimer() {
	if h.idleReset <= 0 {
		return
	}
	select {
	case h.activity <- struct{}{}:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		c.hub.touchIdleTimer()

		msg, err := Parse(data)
		if err != nil {
			c.hub.logger.Error("Failed to parse inbound message", logger.Error(err))
			continue
		}

		// Touch signals are frequent and content-free, keep them out of
		// the log
		if msg.InboundAction() != ActionTouch {
			c.hub.logger.Info("Message received",
				logger.String("type", msg.Type),
				logger.String("action", msg.InboundAction()))
		}

		if c.hub.handler != nil {
			c.hub.handler.HandleMessage(c, msg)
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(message)
			if err != nil {
				c.hub.logger.Error("Failed to marshal outbound message", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

func (c *Client) enqueue(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Close shuts the client connection down
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.closeChan)
	c.conn.Close()
}
