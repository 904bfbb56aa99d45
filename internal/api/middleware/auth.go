package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mindstash/mindstash-backend/internal/auth"
)

// UserIDKey is the fiber locals key holding the authenticated user id
const UserIDKey = "user_id"

// RequireAuth validates the bearer token and stores the user id in locals
func RequireAuth(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.ExtractTokenFromBearer(c.Get("Authorization"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		userID, err := authService.Authenticate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// UserID reads the authenticated user id set by RequireAuth
func UserID(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
