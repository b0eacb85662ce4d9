// internal/chat/store.go
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

// Store is the message persistence collaborator. The GORM implementation
// lives in gorm.go; tests use an in-memory one.
type Store interface {
	Conversation(id uuid.UUID) (*models.Conversation, error) // ErrConversationNotFound
	ConversationByRequest(requestID uuid.UUID) (*models.Conversation, error)
	ThreadsFor(userID uuid.UUID) ([]Thread, error)

	// Messages returns the thread history in delivery order.
	Messages(convID uuid.UUID) ([]models.Message, error)

	// AppendMessage persists the message append-only. Implementations must
	// keep timestamps within a conversation monotonically non-decreasing and
	// bump the conversation's last_message_at.
	AppendMessage(msg *models.Message) error

	// MarkSeen flips every unseen counterpart message to seen and returns how
	// many rows changed. Calling it again is a no-op returning 0. System
	// lines (nil sender) are left alone, mirroring the unread counters.
	MarkSeen(convID, participant uuid.UUID, at time.Time) (int64, error)

	UnreadCount(convID, participant uuid.UUID) (int64, error)
	UnreadTotal(userID uuid.UUID) (int64, error)
}
