package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/agent"
	"github.com/mindstash/mindstash-backend/internal/api/handlers"
	"github.com/mindstash/mindstash-backend/internal/api/middleware"
	"github.com/mindstash/mindstash-backend/internal/auth"
	"github.com/mindstash/mindstash-backend/internal/database"
	"github.com/mindstash/mindstash-backend/internal/notifications"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// Deps bundles everything the route tree needs
type Deps struct {
	DB         *database.DB
	Auth       *auth.Service
	Loop       *agent.Loop
	Users      repository.UserRepository
	Items      repository.ItemRepository
	Sessions   repository.ChatSessionRepository
	Messages   repository.ChatMessageRepository
	Classifier handlers.ItemClassifier
	Notify     *notifications.Service
	Digest     *notifications.DigestService
	Log        *logrus.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Deps) {
	authHandlers := handlers.NewAuthHandlers(deps.Auth, deps.Users, deps.Log)
	chatHandlers := handlers.NewChatHandlers(deps.Loop, deps.Log)
	sessionHandlers := handlers.NewSessionHandlers(deps.Sessions, deps.Messages, deps.Log)
	itemHandlers := handlers.NewItemHandlers(deps.Items, deps.Classifier, deps.Log)
	notificationHandlers := handlers.NewNotificationHandlers(deps.Notify, deps.Digest, deps.Log)

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		code := fiber.StatusOK
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Health(ctx); err != nil {
				deps.Log.WithError(err).Error("health check database ping failed")
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}
		return c.Status(code).JSON(fiber.Map{
			"status":  status,
			"service": "mindstash-backend",
		})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.DefaultRateLimit())

	authGroup := api.Group("/auth")
	authGroup.Post("/register", middleware.AuthRateLimit(), authHandlers.Register)
	authGroup.Post("/login", middleware.AuthRateLimit(), authHandlers.Login)
	authGroup.Post("/refresh", authHandlers.Refresh)

	protected := api.Group("", middleware.RequireAuth(deps.Auth))
	protected.Get("/auth/me", authHandlers.Me)

	protected.Post("/chat", chatHandlers.Chat)

	protected.Get("/sessions", sessionHandlers.List)
	protected.Get("/sessions/:id", sessionHandlers.Get)
	protected.Patch("/sessions/:id", sessionHandlers.Rename)
	protected.Delete("/sessions/:id", sessionHandlers.Delete)

	protected.Get("/items", itemHandlers.List)
	protected.Get("/items/counts", itemHandlers.Counts)
	protected.Post("/items", itemHandlers.Create)
	protected.Get("/items/:id", itemHandlers.Get)
	protected.Patch("/items/:id", itemHandlers.Update)
	protected.Post("/items/:id/complete", itemHandlers.Complete)
	protected.Delete("/items/:id", itemHandlers.Delete)

	protected.Get("/notifications/upcoming", notificationHandlers.Upcoming)
	protected.Get("/digest/preview", notificationHandlers.DigestPreview)

	// WebSocket chat takes its token from the query string, since browsers
	// can't set headers on the upgrade request
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("token")
		if token == "" {
			token = auth.ExtractTokenFromBearer(c.Get("Authorization"))
		}
		userID, err := deps.Auth.Authenticate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}
		c.Locals(middleware.UserIDKey, userID)
		return c.Next()
	})
	app.Get("/ws/chat", websocket.New(chatHandlers.StreamChat))
}
