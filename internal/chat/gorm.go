// internal/chat/gorm.go
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Conversation(id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.DB.First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (s *GormStore) ConversationByRequest(requestID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.DB.First(&conv, "request_id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (s *GormStore) ThreadsFor(userID uuid.UUID) ([]Thread, error) {
	var convs []models.Conversation
	if err := s.DB.
		Preload("Client").
		Preload("Provider").
		Where("client_id = ? OR provider_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}

	threads := make([]Thread, 0, len(convs))
	for _, conv := range convs {
		th := Thread{Conversation: conv}

		var last models.Message
		err := s.DB.
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").
			Limit(1).
			First(&last).Error
		if err == nil {
			th.LastMessage = &last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		unread, err := s.UnreadCount(conv.ID, userID)
		if err != nil {
			return nil, err
		}
		th.Unread = unread

		threads = append(threads, th)
	}
	return threads, nil
}

func (s *GormStore) Messages(convID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.
		Where("conversation_id = ?", convID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *GormStore) AppendMessage(msg *models.Message) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Clauses(forUpdate()).First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}

		// timestamps within a thread never go backwards, even if the clock does
		now := time.Now()
		if now.Before(conv.LastMessageAt) {
			now = conv.LastMessageAt
		}
		msg.CreatedAt = now
		msg.UpdatedAt = now

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Update("last_message_at", now).Error
	})
}

// MarkSeen and the unread counters skip system lines: their sender is
// uuid.Nil and they belong to neither participant.
func (s *GormStore) MarkSeen(convID, participant uuid.UUID, at time.Time) (int64, error) {
	res := s.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id NOT IN (?, ?) AND status != ?",
			convID, participant, uuid.Nil, models.MessageStatusSeen).
		Updates(map[string]interface{}{
			"status":  models.MessageStatusSeen,
			"seen_at": at,
		})
	return res.RowsAffected, res.Error
}

func (s *GormStore) UnreadCount(convID, participant uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id NOT IN (?, ?) AND status != ?",
			convID, participant, uuid.Nil, models.MessageStatusSeen).
		Count(&n).Error
	return n, err
}

func (s *GormStore) UnreadTotal(userID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON messages.conversation_id = conversations.id").
		Where("(conversations.client_id = ? OR conversations.provider_id = ?) AND messages.sender_id NOT IN (?, ?) AND messages.status != ?",
			userID, userID, userID, uuid.Nil, models.MessageStatusSeen).
		Count(&n).Error
	return n, err
}
