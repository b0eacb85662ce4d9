package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

type NotificationHandler struct {
	DB *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

// List returns the caller's feed, newest first, unread count included.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var notifs []models.Notification
	if err := h.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(100).
		Find(&notifs).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch notifications")
	}

	var unread int64
	h.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&unread)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"notifications": notifs,
			"unread":        unread,
		},
	})
}

// MarkRead flags one entry as read. Reading someone else's entry 404s.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	notifID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	res := h.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notifID, userID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to update notification")
	}

	return c.JSON(fiber.Map{"success": true})
}
