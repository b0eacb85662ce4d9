package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/chat"
	"github.com/tukangin-app/tukangin_be/internal/metrics"
)

type ChatHandler struct {
	DB   *gorm.DB
	Chat *chat.Service
}

func NewChatHandler(db *gorm.DB, svc *chat.Service) *ChatHandler {
	return &ChatHandler{DB: db, Chat: svc}
}

// ListConversations returns the caller's chat list grouped by counterpart.
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	groups, err := h.Chat.GroupedChats(userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    groups,
	})
}

// GetMessages returns a thread's history in delivery order.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	convID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	msgs, err := h.Chat.History(convID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    msgs,
	})
}

// SendMessage appends a message. client_ref is echoed back on the realtime
// channel so the sender can reconcile its optimistic copy.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	convID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		Text      string `json:"text"`
		ClientRef string `json:"client_ref"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}

	msg, err := h.Chat.AppendMessage(convID, userID, body.Text, body.ClientRef)
	if err != nil {
		return respondError(c, err)
	}
	metrics.MessagesAppended.Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    msg,
	})
}

// MarkSeen zeroes the caller's unread count for the thread.
func (h *ChatHandler) MarkSeen(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	convID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.Chat.MarkSeen(convID, userID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// UnreadTotal returns the badge count across all threads.
func (h *ChatHandler) UnreadTotal(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	total, err := h.Chat.UnreadTotal(userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"total_unread": total},
	})
}
