package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"openpatrol/api/internal/model"
	"openpatrol/api/internal/service"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development, configure for production
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// feedEnvelope wraps every message pushed to feed clients. ServiceID lets
// the hub apply per-client service filters without re-parsing Data.
type feedEnvelope struct {
	Type      string      `json:"type"`
	ServiceID uint        `json:"service_id"`
	Data      interface{} `json:"data"`
}

// wsMessage is a control message from the client
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// FeedClient is one connected dashboard
type FeedClient struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *WSHub
	// ServiceID filters the feed; 0 means all services
	ServiceID uint
}

type feedMessage struct {
	serviceID uint
	payload   []byte
}

// WSHub bridges NATS patrol events to WebSocket dashboard clients.
type WSHub struct {
	clients    map[*FeedClient]bool
	broadcast  chan feedMessage
	register   chan *FeedClient
	unregister chan *FeedClient
	natsConn   *nats.Conn
	visitSub   *nats.Subscription
	alertSub   *nats.Subscription
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(nc *nats.Conn) *WSHub {
	return &WSHub{
		clients:    make(map[*FeedClient]bool),
		broadcast:  make(chan feedMessage, 256),
		register:   make(chan *FeedClient),
		unregister: make(chan *FeedClient),
		natsConn:   nc,
	}
}

// Run starts the hub's event loop
func (h *WSHub) Run() {
	if h.natsConn != nil {
		visitSub, err := h.natsConn.Subscribe(service.SubjectVisitRecorded, func(msg *nats.Msg) {
			var event model.VisitEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				log.Printf("[WS] Failed to unmarshal visit event: %v", err)
				return
			}
			h.push("visit", event.ServiceID, event)
		})
		if err != nil {
			log.Printf("[WS] Failed to subscribe to visit events: %v", err)
			return
		}
		h.visitSub = visitSub

		alertSub, err := h.natsConn.Subscribe(service.SubjectOverdueAlert, func(msg *nats.Msg) {
			var snapshot service.OverdueSnapshot
			if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
				log.Printf("[WS] Failed to unmarshal alert snapshot: %v", err)
				return
			}
			h.push("alerts", snapshot.ServiceID, snapshot)
		})
		if err != nil {
			log.Printf("[WS] Failed to subscribe to alert snapshots: %v", err)
			return
		}
		h.alertSub = alertSub

		log.Println("[WS] Hub started, subscribed to visit and alert events")
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s, total clients: %d", client.ID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s, total clients: %d", client.ID, total)

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*FeedClient, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				if client.ServiceID != 0 && client.ServiceID != message.serviceID {
					continue
				}
				select {
				case client.Send <- message.payload:
				default:
					// Send buffer full, drop the client inline; re-queuing
					// through unregister would block this same loop
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.Send)
					}
					h.mu.Unlock()
					log.Printf("[WS] Client %s dropped: send buffer full", client.ID)
				}
			}
		}
	}
}

// push marshals an envelope and queues it for fan-out.
func (h *WSHub) push(eventType string, serviceID uint, data interface{}) {
	payload, err := json.Marshal(feedEnvelope{
		Type:      eventType,
		ServiceID: serviceID,
		Data:      data,
	})
	if err != nil {
		log.Printf("[WS] Failed to marshal %s event: %v", eventType, err)
		return
	}

	select {
	case h.broadcast <- feedMessage{serviceID: serviceID, payload: payload}:
	default:
		// Don't block NATS callbacks when the hub is saturated
	}
}

// Stop stops the hub and disconnects all clients
func (h *WSHub) Stop() {
	if h.visitSub != nil {
		h.visitSub.Unsubscribe()
	}
	if h.alertSub != nil {
		h.alertSub.Unsubscribe()
	}
	h.mu.Lock()
	for client := range h.clients {
		close(client.Send)
		client.Conn.Close()
		delete(h.clients, client)
	}
	h.mu.Unlock()
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump handles incoming control messages from the client
func (c *FeedClient) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Client %s read error: %v", c.ID, err)
			}
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "subscribe":
			var data struct {
				ServiceID uint `json:"service_id"`
			}
			if err := json.Unmarshal(msg.Data, &data); err == nil {
				c.ServiceID = data.ServiceID
				log.Printf("[WS] Client %s subscribed to service %d", c.ID, c.ServiceID)
			}
		case "ping":
			select {
			case c.Send <- []byte(`{"type":"pong"}`):
			default:
			}
		}
	}
}

// WritePump handles outgoing messages to the client
func (c *FeedClient) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued messages into the same frame
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSHandler handles WebSocket upgrade requests
type WSHandler struct {
	hub *WSHub
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *WSHub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleFeed upgrades the connection and streams patrol events
func (h *WSHandler) HandleFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Failed to upgrade connection: %v", err)
		return
	}

	var serviceID uint
	if v := queryUint(c, "service_id"); v != nil {
		serviceID = *v
	}

	client := &FeedClient{
		ID:        uuid.NewString(),
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Hub:       h.hub,
		ServiceID: serviceID,
	}

	client.Hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	welcome, err := json.Marshal(gin.H{
		"type":      "connected",
		"message":   "Connected to patrol event feed",
		"client_id": client.ID,
	})
	if err == nil {
		select {
		case client.Send <- welcome:
		default:
		}
	}
}

// GetStats returns hub statistics
func (h *WSHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": h.hub.GetClientCount(),
	})
}
