package handlers

import (
	"bufio"
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/agent"
	"github.com/mindstash/mindstash-backend/internal/api/middleware"
)

// ChatHandlers streams agent turns over SSE and WebSocket
type ChatHandlers struct {
	loop *agent.Loop
	log  *logrus.Logger
}

// NewChatHandlers creates chat handlers
func NewChatHandlers(loop *agent.Loop, log *logrus.Logger) *ChatHandlers {
	return &ChatHandlers{loop: loop, log: log}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Chat handles POST /api/v1/chat and streams the turn as server-sent events
func (h *ChatHandlers) Chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}

	userID := middleware.UserID(c)
	if userID == uuid.Nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	loop := h.loop
	log := h.log
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// The fiber ctx is gone by the time this runs; the turn gets its
		// own cancellable context and the write error tells us when the
		// client left, so the turn stops at its next model or tool call
		// instead of running out the remaining iterations.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := loop.Run(ctx, userID, req.SessionID, req.Message)
		for event := range events {
			if _, err := w.WriteString(event.SSE()); err != nil {
				log.WithError(err).Debug("chat stream client disconnected")
				cancel()
				for range events {
				}
				return
			}
			if err := w.Flush(); err != nil {
				log.WithError(err).Debug("chat stream client disconnected")
				cancel()
				for range events {
				}
				return
			}
		}
	})
	return nil
}

// StreamChat handles the WebSocket chat endpoint. Each client message is one
// turn request; events come back as JSON frames.
func (h *ChatHandlers) StreamChat(c *websocket.Conn) {
	defer c.Close()

	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		c.WriteJSON(agent.Event{Type: agent.EventError, Data: agent.ErrorData{Message: "authentication required"}})
		return
	}

	for {
		var req chatRequest
		if err := c.ReadJSON(&req); err != nil {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			c.WriteJSON(agent.Event{Type: agent.EventError, Data: agent.ErrorData{Message: "message is required"}})
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		events := h.loop.Run(ctx, userID, req.SessionID, req.Message)
		for event := range events {
			if err := c.WriteJSON(event); err != nil {
				cancel()
				for range events {
				}
				return
			}
		}
		cancel()
	}
}
