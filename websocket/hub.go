package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	pongWait       = 60 * time.Second
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	// readWait is how long a connection may stay silent between reads
	readWait   time.Duration
}

type Client struct {
	Hub          *Hub
	Conn         *websocket.Conn
	Send         chan []byte
	UserID       string
	SimulationID string
	// MessageHandler runs on the read goroutine, so messages of one client
	// are handled strictly in order.
	MessageHandler func(*Client, Message)
	closeOnce      sync.Once
}

// Message is what the browser sends: "answer" or "end_session"
type Message struct {
	Type       string `json:"type"`
	Content    string `json:"content,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
}

// Event is what the server pushes back.
type Event struct {
	Type         string      `json:"type"` // "question", "evaluation", "completed", "end_session", "error"
	Content      string      `json:"content,omitempty"`
	SimulationID string      `json:"simulation_id,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		readWait:   pongWait,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "simulation_id", client.SimulationID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "simulation_id", client.SimulationID)
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, simulationID string) *Client {
	client := &Client{
		Hub:          h,
		Conn:         conn,
		Send:         make(chan []byte, 32),
		UserID:       userID,
		SimulationID: simulationID,
	}

	h.register <- client
	return client
}

// Close shuts the underlying connection once; ReadPump then unregisters.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.Conn.Close()
	})
}

// SendEvent queues an event; it drops the event when the client is gone or
// not keeping up.
func (c *Client) SendEvent(event Event) {
	if event.SimulationID == "" {
		event.SimulationID = c.SimulationID
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Dropped event for closed client", "type", event.Type, "simulation_id", c.SimulationID)
		}
	}()
	select {
	case c.Send <- payload:
	default:
		slog.Warn("Send buffer full, dropping event", "type", event.Type, "simulation_id", c.SimulationID)
	}
}

// ReadPump blocks until the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.readWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.readWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err)
			c.SendEvent(Event{Type: "error", Content: "invalid message"})
			continue
		}

		slog.Info("Message received", "type", msg.Type, "simulation_id", c.SimulationID, "content_length", len(msg.Content))

		if c.MessageHandler == nil {
			slog.Warn("No message handler", "type", msg.Type)
			continue
		}
		c.MessageHandler(c, msg)
		// pongs are only processed inside ReadMessage, so a slow handler
		// must not eat the read deadline
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.readWait))
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON event per frame; clients parse frames individually.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
