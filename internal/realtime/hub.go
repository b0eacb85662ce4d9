// internal/realtime/hub.go
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte
}

// Hub tracks every live connection, which user owns it, and which
// appointment thread it currently has open. One user may hold several
// connections; presence means at least one of them is registered.
type Hub struct {
	clients    map[string]*Client
	byUser     map[uuid.UUID]map[string]*Client
	viewing    map[string]map[uuid.UUID]struct{} // client id -> open appointments
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		byUser:     make(map[uuid.UUID]map[string]*Client),
		viewing:    make(map[string]map[uuid.UUID]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// BroadcastJSON fans a payload out to every connection.
func (h *Hub) BroadcastJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling broadcast payload: %v", err)
		return
	}
	h.broadcast <- b
}

// SendToUser delivers to every connection the user holds. Full send
// buffers are skipped rather than blocked on.
func (h *Hub) SendToUser(userID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	h.sendRaw(userID, payload)
}

// SendToUsers delivers one event to each listed user. This is the
// chat.Dispatcher entry point.
func (h *Hub) SendToUsers(event any, userIDs ...uuid.UUID) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	for _, id := range userIDs {
		h.sendRaw(id, payload)
	}
}

func (h *Hub) sendRaw(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.byUser[userID] {
		select {
		case client.Send <- payload:
		default:
			// full buffer, skip this connection
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// OnlineCount returns how many distinct users are connected.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Subscribe marks the connection as viewing an appointment's thread.
// While subscribed, messages for that thread do not generate
// notification feed entries for this user.
func (h *Hub) Subscribe(clientID string, appointmentID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[clientID]; !ok {
		return
	}
	set, ok := h.viewing[clientID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		h.viewing[clientID] = set
	}
	set[appointmentID] = struct{}{}
}

func (h *Hub) Unsubscribe(clientID string, appointmentID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.viewing[clientID], appointmentID)
}

// IsViewing reports whether any of the user's connections has the
// appointment's thread open.
func (h *Hub) IsViewing(userID, appointmentID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.byUser[userID] {
		if _, ok := h.viewing[id][appointmentID]; ok {
			return true
		}
	}
	return false
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			conns, ok := h.byUser[client.UserID]
			if !ok {
				conns = make(map[string]*Client)
				h.byUser[client.UserID] = conns
			}
			conns[client.ID] = client
			h.mu.Unlock()
			log.Printf("Client registered: %s (UserID: %s)", client.ID, client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				h.drop(old)
				log.Printf("Client unregistered: %s", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for _, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes the connection and its viewing state. Caller holds mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client.ID)
	delete(h.viewing, client.ID)
	if conns, ok := h.byUser[client.UserID]; ok {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.byUser, client.UserID)
		}
	}
	close(client.Send)
}
