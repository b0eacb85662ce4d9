package handlers

import (
	"log"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/metrics"
	"github.com/tukangin-app/tukangin_be/internal/models"
	"github.com/tukangin-app/tukangin_be/internal/realtime"
)

// WSHandler owns the websocket endpoint: registration, the thread-viewing
// protocol and typing indicators.
type WSHandler struct {
	DB     *gorm.DB
	Hub    *realtime.Hub
	Typing *realtime.TypingTracker
}

func NewWSHandler(db *gorm.DB, hub *realtime.Hub) *WSHandler {
	h := &WSHandler{DB: db, Hub: hub}
	h.Typing = realtime.NewTypingTracker(realtime.TypingTTL, h.fanOutTyping)
	return h
}

// fanOutTyping delivers a typing event to the thread counterpart.
func (h *WSHandler) fanOutTyping(ev realtime.TypingEvent) {
	var conv models.Conversation
	if err := h.DB.First(&conv, "request_id = ?", ev.RequestID).Error; err != nil {
		return
	}
	h.Hub.SendToUser(conv.Counterpart(ev.UserID), ev)
}

// inbound is the client → server websocket protocol.
type inbound struct {
	Type      string `json:"type"` // subscribe, unsubscribe, typing, typing_stop, pong
	RequestID string `json:"request_id,omitempty"`
}

// Serve runs one connection. The user id comes from the JWT locals set
// before the upgrade.
func (h *WSHandler) Serve(c *websocket.Conn) {
	raw, _ := c.Locals("userId").(string)
	userUUID, err := uuid.Parse(raw)
	if err != nil {
		log.Println("WebSocket: invalid user id:", raw)
		c.Close()
		return
	}

	log.Printf("WebSocket: user %s connected\n", userUUID)
	metrics.WebsocketConnections.Inc()

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Typing.StopAll(userUUID)
		h.Hub.UnregisterClient(client)
		metrics.WebsocketConnections.Dec()
		log.Printf("WebSocket: user %s disconnected\n", userUUID)
	}()

	// hub -> socket
	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	// socket -> hub
	for {
		var payload inbound
		if err := c.ReadJSON(&payload); err != nil {
			log.Printf("WebSocket read error for user %s: %v\n", userUUID, err)
			break
		}

		switch payload.Type {
		case "pong":
			continue
		case "subscribe", "unsubscribe", "typing", "typing_stop":
			appointmentID, err := uuid.Parse(payload.RequestID)
			if err != nil {
				continue
			}
			switch payload.Type {
			case "subscribe":
				h.Hub.Subscribe(client.ID, appointmentID)
			case "unsubscribe":
				h.Hub.Unsubscribe(client.ID, appointmentID)
			case "typing":
				h.Typing.Start(appointmentID, userUUID)
			case "typing_stop":
				h.Typing.Stop(appointmentID, userUUID)
			}
		default:
			log.Printf("WebSocket: unknown message type %q from %s\n", payload.Type, userUUID)
		}
	}
}
