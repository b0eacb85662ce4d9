package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/chat"
	"github.com/tukangin-app/tukangin_be/internal/metrics"
	"github.com/tukangin-app/tukangin_be/internal/models"
	"github.com/tukangin-app/tukangin_be/internal/realtime"
)

// Notifier persists feed entries and pushes them over websocket and Redis.
// It implements booking.Events and chat.Notifier, so both services fan out
// through the same pipe.
type Notifier struct {
	DB   *gorm.DB
	Hub  *realtime.Hub
	RDB  *redis.Client
	Chat *chat.Service
}

func NewNotifier(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *Notifier {
	return &Notifier{DB: db, Hub: hub, RDB: rdb}
}

// Notify writes the feed entry and pushes it. The write is the source of
// truth; pushes are best-effort.
func (n *Notifier) Notify(notif *models.Notification) {
	if err := n.DB.Create(notif).Error; err != nil {
		log.Println("Error creating notification:", err)
		return
	}
	metrics.NotificationsDelivered.Inc()

	n.push(notif)
}

// RequestEvent reacts to booking transitions: a live push to both sides and,
// once a conversation exists, a system line in the thread.
func (n *Notifier) RequestEvent(event string, req *models.ServiceRequest, offer *models.Offer) {
	metrics.BookingTransitions.WithLabelValues(string(req.Status)).Inc()

	payload := map[string]any{
		"type":       "request_update",
		"event":      event,
		"request_id": req.ID.String(),
		"status":     string(req.Status),
	}
	if offer != nil {
		payload["offer_id"] = offer.ID.String()
	}

	n.Hub.SendToUser(req.RequesterID, payload)
	if req.ServiceProviderID != nil {
		n.Hub.SendToUser(*req.ServiceProviderID, payload)
	} else if req.TargetProviderID != nil {
		n.Hub.SendToUser(*req.TargetProviderID, payload)
	} else if offer != nil {
		n.Hub.SendToUser(offer.ProviderID, payload)
	}

	if n.Chat != nil {
		if line := systemLine(event); line != "" {
			if _, err := n.Chat.AppendSystemMessage(req.ID, line); err != nil &&
				err != chat.ErrConversationNotFound {
				log.Println("Error appending system message:", err)
			}
		}
	}
}

// push delivers the envelope exactly once per instance. With Redis up it
// only publishes; the bridge fans the payload out to local sockets the same
// way it does for sockets on other instances. Without Redis it goes straight
// to the hub.
func (n *Notifier) push(notif *models.Notification) {
	ev := notificationEvent(notif)
	if n.RDB == nil {
		n.Hub.SendToUser(notif.UserID, ev)
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := realtime.NotificationChannel(notif.UserID)
	if err := n.RDB.Publish(context.Background(), channel, b).Err(); err != nil {
		log.Println("Error publishing notification:", err)
		n.Hub.SendToUser(notif.UserID, ev)
	}
}

func notificationEvent(notif *models.Notification) map[string]any {
	return map[string]any{
		"type":         "notification",
		"notification": notif,
	}
}

// systemLine translates booking events into thread system messages. Events
// before the conversation exists return "".
func systemLine(event string) string {
	switch event {
	case "offer_accepted":
		return "Offer accepted. You can now discuss the job here."
	case "request_started":
		return "The provider has started working on this job."
	case "request_completed":
		return "The job has been marked as completed."
	case "request_cancelled":
		return "This job has been cancelled."
	default:
		return ""
	}
}
