package handlers

import (
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{DB: db}
}

// GetMyProfile returns the caller's provider profile.
func (h *ProfileHandler) GetMyProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var profile models.ProviderProfile
	if err := h.DB.First(&profile, "user_id = ?", userID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Provider profile not found")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    profile,
	})
}

type updateProfileReq struct {
	DisplayName *string  `json:"display_name"`
	PhotoURL    *string  `json:"photo_url"`
	About       *string  `json:"about"`
	ServiceType *string  `json:"service_type"`
	Skills      []string `json:"skills"`
	ServiceRate *int64   `json:"service_rate"`
	City        *string  `json:"city"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Online      *bool    `json:"online"`
}

// UpdateMyProfile applies a partial update; absent fields stay untouched.
// Verified is deliberately not settable here.
func (h *ProfileHandler) UpdateMyProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req updateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid body")
	}

	if (req.Lat == nil) != (req.Lng == nil) {
		return fail(c, fiber.StatusBadRequest, "lat and lng must both be set")
	}
	if req.Lat != nil {
		if math.IsNaN(*req.Lat) || math.IsInf(*req.Lat, 0) ||
			math.IsNaN(*req.Lng) || math.IsInf(*req.Lng, 0) {
			return fail(c, fiber.StatusBadRequest, "coordinates must be finite")
		}
	}
	if req.ServiceRate != nil && *req.ServiceRate < 0 {
		return fail(c, fiber.StatusBadRequest, "service_rate must be non-negative")
	}

	var profile models.ProviderProfile
	err = h.DB.First(&profile, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		profile = models.ProviderProfile{UserID: userID}
	} else if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load profile")
	}

	if req.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.PhotoURL != nil {
		profile.PhotoURL = *req.PhotoURL
	}
	if req.About != nil {
		profile.About = *req.About
	}
	if req.ServiceType != nil {
		profile.ServiceType = strings.TrimSpace(*req.ServiceType)
	}
	if req.Skills != nil {
		profile.Skills = models.SkillsJSON(req.Skills)
	}
	if req.ServiceRate != nil {
		profile.ServiceRate = *req.ServiceRate
	}
	if req.City != nil {
		profile.City = strings.TrimSpace(*req.City)
	}
	if req.Lat != nil {
		profile.Lat = req.Lat
		profile.Lng = req.Lng
	}
	if req.Online != nil {
		profile.Online = *req.Online
	}

	if err := h.DB.Save(&profile).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to save profile")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated",
		"data":    profile,
	})
}
