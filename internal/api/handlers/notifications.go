package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/api/middleware"
	"github.com/mindstash/mindstash-backend/internal/notifications"
)

// NotificationHandlers serves upcoming reminders and digest previews
type NotificationHandlers struct {
	notifications *notifications.Service
	digest        *notifications.DigestService
	log           *logrus.Logger
}

// NewNotificationHandlers creates notification handlers
func NewNotificationHandlers(svc *notifications.Service, digest *notifications.DigestService, log *logrus.Logger) *NotificationHandlers {
	return &NotificationHandlers{notifications: svc, digest: digest, log: log}
}

// Upcoming handles GET /api/v1/notifications/upcoming
func (h *NotificationHandlers) Upcoming(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)

	items, err := h.notifications.Upcoming(c.Context(), middleware.UserID(c), days)
	if err != nil {
		h.log.WithError(err).Error("listing upcoming notifications failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, 0, len(items))
	for _, item := range items {
		entry := fiber.Map{
			"id":                     item.ID,
			"content":                item.Content,
			"category":               item.Category.String,
			"notification_frequency": item.NotificationFrequency,
		}
		if item.NextNotificationAt.Valid {
			entry["next_notification_at"] = item.NextNotificationAt.Time.Format(time.RFC3339)
		}
		results = append(results, entry)
	}

	return c.JSON(fiber.Map{
		"count": len(results),
		"items": results,
	})
}

// DigestPreview handles GET /api/v1/digest/preview
func (h *NotificationHandlers) DigestPreview(c *fiber.Ctx) error {
	preview, err := h.digest.Preview(c.Context(), middleware.UserID(c))
	if err != nil {
		h.log.WithError(err).Error("digest preview failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(preview)
}
