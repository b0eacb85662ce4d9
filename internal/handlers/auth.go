package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/middleware"
	"github.com/tukangin-app/tukangin_be/internal/models"
	"github.com/tukangin-app/tukangin_be/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	Expires   int
}

type RegisterReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // client / provider (admin is never self-assigned)
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}

func (h *AuthHandler) setAuthCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	password := strings.TrimSpace(req.Password)

	role := models.RoleClient
	if strings.ToLower(strings.TrimSpace(req.Role)) == string(models.RoleProvider) {
		role = models.RoleProvider
	}

	errors := FieldErrors{}

	if name == "" {
		errors.Add("name", "Name is required")
	}
	if email == "" {
		errors.Add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		errors.Add("email", "Invalid email format")
	}
	if password == "" {
		errors.Add("password", "Password is required")
	} else if len(password) < 6 {
		errors.Add("password", "Password must be at least 6 characters")
	}

	if phone != "" && len(phone) < 8 {
		errors.Add("phone", "Invalid phone number")
	}

	if len(errors) > 0 {
		return validationFail(c, errors)
	}

	var existing models.User
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		errs := FieldErrors{}
		errs.Add("email", "Email already registered")
		return validationFail(c, errs)
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	if phone != "" {
		var byPhone models.User
		if err := h.DB.Where("phone = ?", phone).First(&byPhone).Error; err == nil {
			errs := FieldErrors{}
			errs.Add("phone", "Phone number already registered")
			return validationFail(c, errs)
		} else if err != nil && err != gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Internal server error",
			})
		}
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to process password",
		})
	}

	u := models.User{
		Name:     name,
		Email:    email,
		Password: pw,
		Role:     role,
		IsActive: true,
		Phone:    phone,
	}

	if err := h.DB.Create(&u).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Registration failed",
		})
	}

	// providers get an empty profile to fill in later
	if u.Role == models.RoleProvider {
		profile := models.ProviderProfile{UserID: u.ID, DisplayName: u.Name}
		if err := h.DB.Create(&profile).Error; err != nil {
			// account exists; profile can be recreated on first update
			log.Println("Error creating provider profile:", err)
		}
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create token",
		})
	}

	h.setAuthCookie(c, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful",
		"data": fiber.Map{
			"user": fiber.Map{
				"id":    u.ID,
				"name":  u.Name,
				"email": u.Email,
				"phone": u.Phone,
				"role":  u.Role,
			},
		},
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Invalid body",
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errors := FieldErrors{}
	if email == "" {
		errors.Add("email", "Email is required")
	}
	if password == "" {
		errors.Add("password", "Password is required")
	}

	if len(errors) > 0 {
		return validationFail(c, errors)
	}

	var u models.User
	err := h.DB.Where("email = ?", email).First(&u).Error

	if err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Wrong email or password",
		})
	}

	if !u.IsActive {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Account is not active",
		})
	}

	if !utils.CheckPassword(u.Password, password) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Wrong email or password",
		})
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create token",
		})
	}

	h.setAuthCookie(c, token)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"data": fiber.Map{
			"user": fiber.Map{
				"id":    u.ID,
				"name":  u.Name,
				"email": u.Email,
				"role":  u.Role,
			},
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout successful",
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var u models.User
	if err := h.DB.Preload("ProviderProfile").First(&u, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    u,
	})
}
