// Package chat maintains per-engagement message threads, unread counters
// and seen state, and hands every committed append to the realtime
// dispatcher for fan-out.
package chat

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

// Dispatcher is the realtime side the service pushes into. Implemented by
// realtime.Hub; nil-safe fakes in tests.
type Dispatcher interface {
	// SendToUsers delivers an event to every connection of the given users.
	SendToUsers(event any, userIDs ...uuid.UUID)
	IsOnline(userID uuid.UUID) bool
	// IsViewing reports whether the user currently has the appointment's
	// thread open on any connection.
	IsViewing(userID, appointmentID uuid.UUID) bool
}

// Notifier lands entries in the persistent notification feed.
type Notifier interface {
	Notify(n *models.Notification)
}

// MessageEvent is the wire shape of a chat event on the realtime channel.
// ClientRef echoes the sender's optimistic reference so the sending client
// can reconcile (or retract, on a reject event) its local copy.
type MessageEvent struct {
	Type      string          `json:"type"` // new_message, message_rejected, messages_seen
	ClientRef string          `json:"client_ref,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	RequestID uuid.UUID       `json:"request_id"`
	SeenBy    *uuid.UUID      `json:"seen_by,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

const (
	// sendRate allows a short burst then one message per second per user.
	sendInterval = time.Second
	sendBurst    = 5
)

type Service struct {
	store    Store
	disp     Dispatcher
	notifier Notifier

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

func NewService(store Store, disp Dispatcher, notifier Notifier) *Service {
	return &Service{
		store:    store,
		disp:     disp,
		notifier: notifier,
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

func (s *Service) limiter(userID uuid.UUID) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(sendInterval), sendBurst)
		s.limiters[userID] = l
	}
	return l
}

// AppendMessage commits a message to the thread and fans it out. The commit
// is append-only; on any error nothing is stored and the caller's optimistic
// copy must be retracted (the reject event carries the client_ref for that).
func (s *Service) AppendMessage(convID, senderID uuid.UUID, body, clientRef string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &ValidationError{Field: "text", Reason: "required"}
	}

	conv, err := s.store.Conversation(convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, &NotParticipantError{UserID: senderID, ConversationID: convID}
	}

	if !s.limiter(senderID).Allow() {
		s.sendTo(senderID, MessageEvent{
			Type:      "message_rejected",
			ClientRef: clientRef,
			RequestID: conv.RequestID,
			Reason:    "rate limited",
		})
		return nil, &RateLimitError{UserID: senderID}
	}

	recipient := conv.Counterpart(senderID)
	msg := &models.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Type:           "text",
		Text:           body,
		Status:         models.MessageStatusSent,
	}
	if s.disp != nil && s.disp.IsOnline(recipient) {
		msg.Status = models.MessageStatusDelivered
	}

	if err := s.store.AppendMessage(msg); err != nil {
		s.sendTo(senderID, MessageEvent{
			Type:      "message_rejected",
			ClientRef: clientRef,
			RequestID: conv.RequestID,
			Reason:    "store failure",
		})
		return nil, err
	}

	s.sendTo(conv.ClientID, MessageEvent{
		Type: "new_message", ClientRef: clientRef, Message: msg, RequestID: conv.RequestID,
	})
	if conv.ProviderID != conv.ClientID {
		s.sendTo(conv.ProviderID, MessageEvent{
			Type: "new_message", ClientRef: clientRef, Message: msg, RequestID: conv.RequestID,
		})
	}

	// notification only when the recipient is not looking at the thread
	if s.notifier != nil && (s.disp == nil || !s.disp.IsViewing(recipient, conv.RequestID)) {
		s.notifier.Notify(&models.Notification{
			UserID: recipient,
			Type:   models.NotifChatMessage,
			Title:  "New message",
			Payload: models.PayloadJSON(map[string]any{
				"request_id":      conv.RequestID.String(),
				"conversation_id": convID.String(),
				"sender_id":       senderID.String(),
				"preview":         preview(body),
			}),
		})
	}

	return msg, nil
}

// AppendSystemMessage posts a non-user message into the thread (booking
// transitions use this). Not rate limited, never notifies.
func (s *Service) AppendSystemMessage(requestID uuid.UUID, text string) (*models.Message, error) {
	conv, err := s.store.ConversationByRequest(requestID)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       uuid.Nil,
		Type:           "system",
		Text:           text,
		Status:         models.MessageStatusSent,
	}
	if err := s.store.AppendMessage(msg); err != nil {
		return nil, err
	}
	s.sendTo(conv.ClientID, MessageEvent{Type: "new_message", Message: msg, RequestID: conv.RequestID})
	s.sendTo(conv.ProviderID, MessageEvent{Type: "new_message", Message: msg, RequestID: conv.RequestID})
	return msg, nil
}

// MarkSeen flips all counterpart messages to seen and zeroes the caller's
// unread count for the thread. Idempotent: repeat calls change nothing and
// emit nothing.
func (s *Service) MarkSeen(convID, participant uuid.UUID) error {
	conv, err := s.store.Conversation(convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(participant) {
		return &NotParticipantError{UserID: participant, ConversationID: convID}
	}

	changed, err := s.store.MarkSeen(convID, participant, time.Now())
	if err != nil {
		return err
	}
	if changed > 0 {
		s.sendTo(conv.Counterpart(participant), MessageEvent{
			Type:      "messages_seen",
			RequestID: conv.RequestID,
			SeenBy:    &participant,
		})
	}
	return nil
}

// History returns the thread in delivery order after checking membership.
func (s *Service) History(convID, participant uuid.UUID) ([]models.Message, error) {
	conv, err := s.store.Conversation(convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(participant) {
		return nil, &NotParticipantError{UserID: participant, ConversationID: convID}
	}
	return s.store.Messages(convID)
}

// GroupedChats returns the user's chat list grouped by counterpart.
func (s *Service) GroupedChats(userID uuid.UUID) ([]GroupedChat, error) {
	threads, err := s.store.ThreadsFor(userID)
	if err != nil {
		return nil, err
	}
	return GroupThreads(userID, threads), nil
}

func (s *Service) UnreadTotal(userID uuid.UUID) (int64, error) {
	return s.store.UnreadTotal(userID)
}

func (s *Service) sendTo(userID uuid.UUID, ev MessageEvent) {
	if s.disp != nil {
		s.disp.SendToUsers(ev, userID)
	}
}

// preview truncates on rune boundaries so a multi-byte character is never
// cut in half.
func preview(body string) string {
	const max = 80
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	return string([]rune(body)[:max]) + "…"
}
