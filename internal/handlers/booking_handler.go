package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/booking"
	"github.com/tukangin-app/tukangin_be/internal/models"
)

type BookingHandler struct {
	DB      *gorm.DB
	Booking *booking.Service
}

func NewBookingHandler(db *gorm.DB, svc *booking.Service) *BookingHandler {
	return &BookingHandler{DB: db, Booking: svc}
}

// CreateRequest posts a new service request.
func (h *BookingHandler) CreateRequest(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var in booking.CreateRequestInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}

	req, err := h.Booking.CreateRequest(userID, in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Request created",
		"data":    req,
	})
}

// ListRequests returns the caller's requests (as requester), newest first.
// Providers see open requests instead via the recommendation endpoints.
func (h *BookingHandler) ListRequests(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	q := h.DB.Order("created_at DESC")
	if currentRole(c) == string(models.RoleProvider) {
		q = q.Where("service_provider_id = ? OR target_provider_id = ?", userID, userID)
	} else {
		q = q.Where("requester_id = ?", userID)
	}

	var requests []models.ServiceRequest
	if err := q.Preload("ServiceProvider").Find(&requests).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch requests")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    requests,
	})
}

func (h *BookingHandler) GetRequest(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req models.ServiceRequest
	if err := h.DB.Preload("Requester").Preload("ServiceProvider").
		First(&req, "id = ?", requestID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Request not found")
	}

	var offers []models.Offer
	offerQuery := h.DB.Where("request_id = ?", requestID).Order("created_at DESC")
	if req.RequesterID != userID {
		// providers only see their own offers on someone else's request
		offerQuery = offerQuery.Where("provider_id = ?", userID)
	}
	if err := offerQuery.Preload("Provider").Find(&offers).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch offers")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"request": req,
			"offers":  offers,
		},
	})
}

// CreateOffer targets an open request at a specific provider.
func (h *BookingHandler) CreateOffer(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		ProviderID string `json:"provider_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}
	providerID, err := uuid.Parse(body.ProviderID)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid provider_id")
	}

	offer, err := h.Booking.CreateOffer(userID, requestID, providerID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Offer sent",
		"data":    offer,
	})
}

// Apply lets a provider apply to an open request with a proposed fee.
func (h *BookingHandler) Apply(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		CommissionFee *int64 `json:"commission_fee"`
		Message       string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}

	offer, err := h.Booking.ApplyToRequest(userID, requestID, body.CommissionFee, body.Message)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Application sent",
		"data":    offer,
	})
}

// Respond accepts or declines a pending offer.
func (h *BookingHandler) Respond(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	offerID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		Action string `json:"action"` // accept | decline
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}

	var accept bool
	switch body.Action {
	case "accept":
		accept = true
	case "decline":
		accept = false
	default:
		return fail(c, fiber.StatusBadRequest, "action must be accept or decline")
	}

	offer, err := h.Booking.RespondToOffer(userID, offerID, accept)
	if err != nil {
		return respondError(c, err)
	}

	message := "Offer declined"
	if accept {
		message = "Offer accepted"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    offer,
	})
}

func (h *BookingHandler) Start(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	req, err := h.Booking.Start(userID, requestID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Work started",
		"data":    req,
	})
}

func (h *BookingHandler) Complete(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	req, err := h.Booking.Complete(userID, requestID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Job completed",
		"data":    req,
	})
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requestID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	isAdmin := currentRole(c) == string(models.RoleAdmin)
	req, err := h.Booking.Cancel(userID, requestID, isAdmin)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Request cancelled",
		"data":    req,
	})
}
