package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/api/middleware"
	"github.com/mindstash/mindstash-backend/internal/categorizer"
	"github.com/mindstash/mindstash-backend/internal/notifications"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// ItemClassifier assigns category and signals to captured content
type ItemClassifier interface {
	Categorize(ctx context.Context, content, url string) (*categorizer.Result, error)
}

// ItemHandlers serves item capture and browsing
type ItemHandlers struct {
	items      repository.ItemRepository
	classifier ItemClassifier
	log        *logrus.Logger
}

// NewItemHandlers creates item handlers. The classifier may be nil, in which
// case created items stay uncategorized.
func NewItemHandlers(items repository.ItemRepository, classifier ItemClassifier, log *logrus.Logger) *ItemHandlers {
	return &ItemHandlers{items: items, classifier: classifier, log: log}
}

type createItemRequest struct {
	Content string `json:"content"`
	URL     string `json:"url"`
}

type updateItemRequest struct {
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
	Priority *string   `json:"priority"`
	Urgency  *string   `json:"urgency"`
}

// List handles GET /api/v1/items with search and module filters
func (h *ItemHandlers) List(c *fiber.Ctx) error {
	filter := repository.SearchFilter{
		Search:   c.Query("search"),
		Module:   c.Query("module"),
		Category: c.Query("category"),
		Urgency:  c.Query("urgency"),
		Tag:      c.Query("tag"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 10),
	}
	if filter.Module == "all" {
		filter.Module = ""
	}

	items, total, err := h.items.Search(c.Context(), middleware.UserID(c), filter)
	if err != nil {
		h.log.WithError(err).Error("item search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, 0, len(items))
	for i := range items {
		results = append(results, itemPayload(&items[i]))
	}
	return c.JSON(fiber.Map{
		"items": results,
		"total": total,
		"page":  filter.Page,
	})
}

// Counts handles GET /api/v1/items/counts
func (h *ItemHandlers) Counts(c *fiber.Ctx) error {
	counts, err := h.items.Counts(c.Context(), middleware.UserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(counts)
}

// Create handles POST /api/v1/items
func (h *ItemHandlers) Create(c *fiber.Ctx) error {
	var req createItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}
	if len([]rune(content)) > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content must be 500 characters or less"})
	}

	userID := middleware.UserID(c)
	item := &repository.Item{
		UserID:  userID,
		Content: content,
	}
	if req.URL != "" {
		item.URL = sql.NullString{String: req.URL, Valid: true}
	}
	if err := h.items.Create(c.Context(), item); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if h.classifier != nil {
		if result, err := h.classifier.Categorize(c.Context(), content, req.URL); err != nil {
			h.log.WithError(err).Warn("categorization failed")
		} else {
			applyClassification(item, result)
			if err := h.items.Update(c.Context(), item); err != nil {
				h.log.WithError(err).Warn("failed to store classification")
			}
		}
	}

	return c.Status(fiber.StatusCreated).JSON(itemPayload(item))
}

// Get handles GET /api/v1/items/:id
func (h *ItemHandlers) Get(c *fiber.Ctx) error {
	item, errResp := h.lookup(c)
	if errResp != nil {
		return errResp(c)
	}
	return c.JSON(itemPayload(item))
}

// Update handles PATCH /api/v1/items/:id
func (h *ItemHandlers) Update(c *fiber.Ctx) error {
	item, errResp := h.lookup(c)
	if errResp != nil {
		return errResp(c)
	}

	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" || len([]rune(content)) > 500 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content must be 1-500 characters"})
		}
		item.Content = content
	}
	if req.Category != nil {
		item.Category = sql.NullString{String: *req.Category, Valid: *req.Category != ""}
	}
	if req.Tags != nil {
		item.Tags = repository.Tags(*req.Tags)
	}
	if req.Priority != nil {
		item.Priority = sql.NullString{String: *req.Priority, Valid: *req.Priority != ""}
	}
	if req.Urgency != nil {
		item.Urgency = sql.NullString{String: *req.Urgency, Valid: *req.Urgency != ""}
	}

	if err := h.items.Update(c.Context(), item); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(itemPayload(item))
}

// Complete handles POST /api/v1/items/:id/complete
func (h *ItemHandlers) Complete(c *fiber.Ctx) error {
	item, errResp := h.lookup(c)
	if errResp != nil {
		return errResp(c)
	}

	var req struct {
		Completed *bool `json:"completed"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	now := time.Now().UTC()
	item.IsCompleted = completed
	if completed {
		item.CompletedAt = sql.NullTime{Time: now, Valid: true}
		if notifications.IsRecurring(item.NotificationFrequency) {
			item.NotificationEnabled = false
			item.NextNotificationAt = sql.NullTime{}
		}
	} else {
		item.CompletedAt = sql.NullTime{}
		if item.NotificationDate.Valid {
			item.NotificationEnabled = true
			if item.NotificationDate.Time.After(now) {
				item.NextNotificationAt = item.NotificationDate
			}
		}
	}

	if err := h.items.Update(c.Context(), item); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(itemPayload(item))
}

// Delete handles DELETE /api/v1/items/:id
func (h *ItemHandlers) Delete(c *fiber.Ctx) error {
	item, errResp := h.lookup(c)
	if errResp != nil {
		return errResp(c)
	}

	if err := h.items.Delete(c.Context(), middleware.UserID(c), item.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func (h *ItemHandlers) lookup(c *fiber.Ctx) (*repository.Item, func(*fiber.Ctx) error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid item id"})
		}
	}

	item, err := h.items.Get(c.Context(), middleware.UserID(c), id)
	if err != nil {
		return nil, func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	if item == nil {
		return nil, func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Item not found"})
		}
	}
	return item, nil
}

func applyClassification(item *repository.Item, result *categorizer.Result) {
	item.Category = sql.NullString{String: result.Category, Valid: result.Category != ""}
	item.Tags = repository.Tags(result.Tags)
	item.Summary = sql.NullString{String: result.Summary, Valid: result.Summary != ""}
	item.Confidence = sql.NullFloat64{Float64: result.Confidence, Valid: true}
	item.Priority = sql.NullString{String: result.Priority, Valid: result.Priority != ""}
	item.Urgency = sql.NullString{String: result.Urgency, Valid: result.Urgency != ""}
	item.Intent = sql.NullString{String: result.Intent, Valid: result.Intent != ""}
	item.TimeContext = sql.NullString{String: result.TimeContext, Valid: result.TimeContext != ""}
	item.ActionRequired = result.ActionRequired
	item.NotificationEnabled = result.ShouldNotify
	item.NotificationFrequency = result.NotificationFrequency
	if meta, err := json.Marshal(result); err == nil {
		item.AIMetadata = meta
	}
}

func itemPayload(item *repository.Item) fiber.Map {
	payload := fiber.Map{
		"id":                     item.ID,
		"content":                item.Content,
		"category":               item.Category.String,
		"summary":                item.Summary.String,
		"tags":                   []string(item.Tags),
		"priority":               item.Priority.String,
		"urgency":                item.Urgency.String,
		"is_completed":           item.IsCompleted,
		"action_required":        item.ActionRequired,
		"notification_enabled":   item.NotificationEnabled,
		"notification_frequency": item.NotificationFrequency,
		"created_at":             item.CreatedAt,
		"updated_at":             item.UpdatedAt,
	}
	if item.URL.Valid {
		payload["url"] = item.URL.String
	}
	if item.CompletedAt.Valid {
		payload["completed_at"] = item.CompletedAt.Time
	}
	if item.NextNotificationAt.Valid {
		payload["next_notification_at"] = item.NextNotificationAt.Time
	}
	return payload
}
