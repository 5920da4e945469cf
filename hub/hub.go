package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/qr-dine/utils"
)

// Event types
const (
	EventSessionPaid    = "session_paid"
	EventSessionEnded   = "session_ended"
	EventOrderUpdate    = "order_update"
	EventPaymentPending = "payment_pending"
	EventPaymentSuccess = "payment_success"
	EventPaymentFailed  = "payment_failed"
	EventStaffNotif     = "staff_notification"
)

// Rooms with a fixed name. Session rooms are derived per session, see SessionRoom.
const (
	RoomStaff    = "STAFF"
	RoomCustomer = "CUSTOMER"
)

// SessionRoom names the room customers of one qr session subscribe to.
func SessionRoom(sessionID uint) string {
	return fmt.Sprintf("QR_SESSION_%d", sessionID)
}

type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier is what the services publish through. Delivery is at-least-once
// and best-effort: a subscriber that is not connected misses the event.
type Notifier interface {
	Publish(room string, eventType string, data interface{})
}

// Hub fans events out to every websocket client subscribed to a room.
type Hub struct {
	clients map[*websocket.Conn]string // conn -> room
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
	}
}

// Register adds a connection to a room.
func (h *Hub) Register(conn *websocket.Conn, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = room
}

// Unregister drops a connection and closes it.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// Publish sends the event to every client in the room. Send failures are
// logged and skipped; they never propagate to the publisher.
func (h *Hub) Publish(room string, eventType string, data interface{}) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		utils.ErrorLogger.Printf("hub: marshal event %s: %v", eventType, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, subscribed := range h.clients {
		if subscribed != room {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			utils.ErrorLogger.Printf("hub: send %s to room %s: %v", eventType, room, err)
			continue
		}
	}
}
