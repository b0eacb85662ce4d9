// internal/chat/errors.go
package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrConversationNotFound = errors.New("chat: conversation not found")

// NotParticipantError: the actor is not a member of the thread.
type NotParticipantError struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
}

func (e *NotParticipantError) Error() string {
	return fmt.Sprintf("chat: user %s is not a participant of conversation %s", e.UserID, e.ConversationID)
}

// ValidationError: malformed message input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: invalid %s: %s", e.Field, e.Reason)
}

// RateLimitError: the sender is pushing messages faster than allowed. The
// message was not stored; the caller should retry later.
type RateLimitError struct {
	UserID uuid.UUID
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("chat: user %s is sending messages too fast", e.UserID)
}
