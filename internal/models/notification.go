// internal/models/notification.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotifOfferMade     NotificationType = "offer_made"
	NotifOfferAccepted NotificationType = "offer_accepted"
	NotifOfferDeclined NotificationType = "offer_declined"
	NotifApplication   NotificationType = "application"
	NotifChatMessage   NotificationType = "chat_message"
	NotifRequestUpdate NotificationType = "request_update"
)

// Notification is a persisted feed entry; the realtime push is best-effort
// on top of this record.
type Notification struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`

	Type    NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title   string           `gorm:"type:varchar(200)" json:"title"`
	Payload datatypes.JSON   `json:"payload"` // request_id, offer_id, sender_id, ...

	ReadAt *time.Time `json:"read_at"`

	CreatedAt time.Time `json:"created_at"`
}

func PayloadJSON(v map[string]any) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
