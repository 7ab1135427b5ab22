package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/notesync/engine/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local single-user engine; tighten if ever exposed beyond localhost
		return true
	},
}

// WebSocketHandler handles WebSocket connections for sync lifecycle events
type WebSocketHandler struct {
	hub *services.WebSocketHub
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := h.hub.NewClient(clientID, conn)

	h.hub.Register(client)

	// Every client hears sync events by default; conflicts and queue
	// updates are opt-in via subscribe messages.
	h.hub.Subscribe(client, services.TopicSync)

	go client.WritePump()

	// Blocks until the connection closes
	client.ReadPump(h.handleMessage)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if topic, ok := msg.Payload.(string); ok && validTopic(topic) {
			h.hub.Subscribe(client, topic)
		}
	case services.WSTypeUnsubscribe:
		if topic, ok := msg.Payload.(string); ok {
			h.hub.Unsubscribe(client, topic)
		}
	case services.WSTypePing:
		pong, _ := json.Marshal(services.WSMessage{Type: services.WSTypePong})
		select {
		case client.Send <- pong:
		default:
		}
	}
}

func validTopic(topic string) bool {
	switch topic {
	case services.TopicSync, services.TopicConflicts, services.TopicQueue:
		return true
	}
	return false
}
