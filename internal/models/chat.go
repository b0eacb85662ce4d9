// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the messaging thread tied to an accepted ServiceRequest.
// RequestID doubles as the appointment id on the realtime channel.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"request_id"`

	ClientID   uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;index;not null" json:"provider_id"`

	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Client   *User     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Provider *User     `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// Counterpart returns the other participant of the thread.
func (c *Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	if userID == c.ClientID {
		return c.ProviderID
	}
	return c.ClientID
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return userID == c.ClientID || userID == c.ProviderID
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusSeen      MessageStatus = "seen"
)

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;index" json:"sender_id"`

	Type string `gorm:"default:'text'" json:"type"` // text, offer, system
	Text string `json:"text"`

	Status MessageStatus `gorm:"type:varchar(20);default:'sent'" json:"status"`
	SeenAt *time.Time    `json:"seen_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
