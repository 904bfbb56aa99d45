package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/api/middleware"
	"github.com/mindstash/mindstash-backend/internal/auth"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// AuthHandlers serves registration, login, and token refresh
type AuthHandlers struct {
	auth  *auth.Service
	users repository.UserRepository
	log   *logrus.Logger
}

// NewAuthHandlers creates auth handlers
func NewAuthHandlers(authService *auth.Service, users repository.UserRepository, log *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{auth: authService, users: users, log: log}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func userPayload(user *repository.User) fiber.Map {
	return fiber.Map{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandlers) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user, tokens, err := h.auth.Register(c.Context(), req.Email, req.Password)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, auth.ErrEmailAlreadyExists) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.WithField("user_id", user.ID).Info("user registered")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":   userPayload(user),
		"tokens": tokens,
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandlers) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user, tokens, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.WithError(err).Error("login failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Login failed"})
	}

	return c.JSON(fiber.Map{
		"user":   userPayload(user),
		"tokens": tokens,
	})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandlers) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "refresh_token is required"})
	}

	tokens, err := h.auth.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid refresh token"})
	}
	return c.JSON(fiber.Map{"tokens": tokens})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandlers) Me(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), middleware.UserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(userPayload(user))
}
