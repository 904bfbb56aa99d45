package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/api/middleware"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// SessionHandlers serves chat session management
type SessionHandlers struct {
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	log      *logrus.Logger
}

// NewSessionHandlers creates session handlers
func NewSessionHandlers(sessions repository.ChatSessionRepository, messages repository.ChatMessageRepository, log *logrus.Logger) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, messages: messages, log: log}
}

// List handles GET /api/v1/sessions
func (h *SessionHandlers) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	sessions, total, err := h.sessions.List(c.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		h.log.WithError(err).Error("listing sessions failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, 0, len(sessions))
	for _, s := range sessions {
		results = append(results, sessionPayload(s))
	}
	return c.JSON(fiber.Map{
		"sessions": results,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get handles GET /api/v1/sessions/:id and includes the session's messages
func (h *SessionHandlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.sessions.Get(c.Context(), middleware.UserID(c), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}

	messages, err := h.messages.ListBySession(c.Context(), session.ID, 200)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, 0, len(messages))
	for _, m := range messages {
		results = append(results, messagePayload(m))
	}
	return c.JSON(fiber.Map{
		"session":  sessionPayload(repository.SessionSummary{ChatSession: *session, MessageCount: len(messages)}),
		"messages": results,
	})
}

// Rename handles PATCH /api/v1/sessions/:id
func (h *SessionHandlers) Rename(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	session, err := h.sessions.Get(c.Context(), middleware.UserID(c), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}

	if err := h.sessions.SetTitle(c.Context(), id, strings.TrimSpace(req.Title)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"renamed": true})
}

// Delete handles DELETE /api/v1/sessions/:id
func (h *SessionHandlers) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	if err := h.sessions.Delete(c.Context(), middleware.UserID(c), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func sessionPayload(s repository.SessionSummary) fiber.Map {
	return fiber.Map{
		"id":             s.ID,
		"title":          s.Title.String,
		"agent_type":     s.AgentType,
		"message_count":  s.MessageCount,
		"created_at":     s.CreatedAt,
		"last_active_at": s.LastActiveAt,
	}
}

func messagePayload(m repository.ChatMessage) fiber.Map {
	payload := fiber.Map{
		"id":         m.ID,
		"role":       m.Role,
		"content":    m.Content.String,
		"created_at": m.CreatedAt,
	}
	if len(m.ToolCalls) > 0 {
		payload["tool_calls"] = m.ToolCalls
	}
	if len(m.ToolResults) > 0 {
		payload["tool_results"] = m.ToolResults
	}
	return payload
}
