package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/categorizer"
	"github.com/mindstash/mindstash-backend/internal/notifications"
	"github.com/mindstash/mindstash-backend/internal/providers"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// CategoryEmoji decorates categories in tool output
var CategoryEmoji = map[string]string{
	"read": "📚", "watch": "🎥", "ideas": "💡", "tasks": "✅",
	"people": "👤", "notes": "📝", "goals": "🎯", "buy": "🛒",
	"places": "📍", "journal": "💭", "learn": "🎓", "save": "🔖",
}

// Classifier assigns category and signals to new items
type Classifier interface {
	Categorize(ctx context.Context, content, url string) (*categorizer.Result, error)
}

// ToolDeps carries the collaborators the tool handlers work against
type ToolDeps struct {
	Items         repository.ItemRepository
	Notifications *notifications.Service
	Digest        *notifications.DigestService
	Classifier    Classifier
	Log           *logrus.Logger
}

// RegisterTools registers the canonical tool set on the registry
func RegisterTools(r *ToolRegistry, deps ToolDeps) {
	r.Register(searchItemsSchema, deps.handleSearchItems)
	r.Register(createItemSchema, deps.handleCreateItem)
	r.Register(updateItemSchema, deps.handleUpdateItem)
	r.Register(deleteItemSchema, deps.handleDeleteItem)
	r.Register(markCompleteSchema, deps.handleMarkComplete)
	r.Register(getCountsSchema, deps.handleGetCounts)
	r.Register(getUpcomingNotificationsSchema, deps.handleGetUpcomingNotifications)
	r.Register(getDigestPreviewSchema, deps.handleGetDigestPreview)
	r.Register(generateDailyBriefingSchema, deps.handleGenerateDailyBriefing)
}

// ---------------------------------------------------------------------------
// Schemas

var categoryEnum = []interface{}{
	"read", "watch", "ideas", "tasks", "people", "notes",
	"goals", "buy", "places", "journal", "learn", "save",
}

var levelEnum = []interface{}{"low", "medium", "high"}

var searchItemsSchema = providers.Tool{
	Name:        "search_items",
	Description: "Search and filter the user's saved items. Use this to find items by text, category, urgency, module, or tag. Returns paginated results.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"search": map[string]interface{}{
				"type":        "string",
				"description": "Text to search in content, summary, and tags",
			},
			"module": map[string]interface{}{
				"type":        "string",
				"enum":        []interface{}{"all", "today", "tasks", "read_later", "ideas", "insights", "reminders"},
				"description": "Filter by module view",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"enum":        categoryEnum,
				"description": "Filter by category",
			},
			"urgency": map[string]interface{}{
				"type":        "string",
				"enum":        levelEnum,
				"description": "Filter by urgency level",
			},
			"tag": map[string]interface{}{
				"type":        "string",
				"description": "Filter by a specific tag",
			},
			"page": map[string]interface{}{
				"type":        "integer",
				"description": "Page number (default 1)",
			},
			"page_size": map[string]interface{}{
				"type":        "integer",
				"description": "Items per page (default 10, max 20)",
			},
		},
		"required": []interface{}{},
	},
}

var createItemSchema = providers.Tool{
	Name:        "create_item",
	Description: "Create a new item for the user. AI will automatically categorize it. Use this when the user wants to save a thought, task, idea, note, or any content.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The content to save (max 500 characters)",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Optional URL associated with the content",
			},
		},
		"required": []interface{}{"content"},
	},
}

var updateItemSchema = providers.Tool{
	Name:        "update_item",
	Description: "Update an existing item. Can change content, category, tags, priority, or urgency.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"item_id": map[string]interface{}{"type": "string", "description": "UUID of the item to update"},
			"content": map[string]interface{}{"type": "string", "description": "New content (max 500 chars)"},
			"category": map[string]interface{}{
				"type": "string",
				"enum": categoryEnum,
			},
			"tags": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "New tags list",
			},
			"priority": map[string]interface{}{"type": "string", "enum": levelEnum},
			"urgency":  map[string]interface{}{"type": "string", "enum": levelEnum},
		},
		"required": []interface{}{"item_id"},
	},
}

var deleteItemSchema = providers.Tool{
	Name:        "delete_item",
	Description: "Permanently delete an item. Use with caution.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"item_id": map[string]interface{}{"type": "string", "description": "UUID of the item to delete"},
		},
		"required": []interface{}{"item_id"},
	},
}

var markCompleteSchema = providers.Tool{
	Name:        "mark_complete",
	Description: "Mark an item as complete or incomplete. Completing an item also disables recurring notifications.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"item_id":   map[string]interface{}{"type": "string", "description": "UUID of the item"},
			"completed": map[string]interface{}{"type": "boolean", "description": "True to mark complete, False for incomplete"},
		},
		"required": []interface{}{"item_id", "completed"},
	},
}

var getCountsSchema = providers.Tool{
	Name:        "get_counts",
	Description: "Get a summary of item counts across all modules (all, today, tasks, read_later, ideas, insights, reminders). Use this to give the user an overview.",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	},
}

var getUpcomingNotificationsSchema = providers.Tool{
	Name:        "get_upcoming_notifications",
	Description: "Get items with upcoming notifications within the next N days.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"days": map[string]interface{}{
				"type":        "integer",
				"description": "Number of days to look ahead (default 7, max 30)",
			},
		},
		"required": []interface{}{},
	},
}

var getDigestPreviewSchema = providers.Tool{
	Name:        "get_digest_preview",
	Description: "Get a preview of the user's weekly digest: urgent items, pending tasks, upcoming notifications, and stats.",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	},
}

var generateDailyBriefingSchema = providers.Tool{
	Name: "generate_daily_briefing",
	Description: "Generate a comprehensive daily briefing for the user. Combines item counts, " +
		"urgent items, pending tasks, upcoming notifications (next 3 days), and weekly stats " +
		"into a single payload. Use this when the user asks for a daily briefing or when " +
		"the message is '[BRIEFING]'.",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	},
}

// ---------------------------------------------------------------------------
// Handlers

func (d ToolDeps) handleSearchItems(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	filter := repository.SearchFilter{
		Search:   stringArg(input, "search"),
		Module:   stringArg(input, "module"),
		Category: stringArg(input, "category"),
		Urgency:  stringArg(input, "urgency"),
		Tag:      stringArg(input, "tag"),
		Page:     intArg(input, "page", 1),
		PageSize: intArg(input, "page_size", 10),
	}
	if filter.Module == "all" {
		filter.Module = ""
	}

	items, total, err := d.Items.Search(ctx, userID, filter)
	if err != nil {
		return errResult(err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 20 {
		pageSize = 20
	}

	results := make([]map[string]interface{}, 0, len(items))
	for i := range items {
		results = append(results, itemSummary(&items[i]))
	}

	return map[string]interface{}{
		"items":     results,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	}
}

func (d ToolDeps) handleCreateItem(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	content := strings.TrimSpace(stringArg(input, "content"))
	if content == "" {
		return map[string]interface{}{"error": "content is required"}
	}
	if len([]rune(content)) > 500 {
		return map[string]interface{}{"error": "content must be 500 characters or less"}
	}

	url := stringArg(input, "url")
	item := &repository.Item{
		UserID:  userID,
		Content: content,
		URL:     nullString(url),
	}
	if err := d.Items.Create(ctx, item); err != nil {
		return errResult(err)
	}

	if d.Classifier != nil {
		if result, err := d.Classifier.Categorize(ctx, content, url); err != nil {
			d.Log.WithError(err).Warn("categorization failed during chat create")
		} else {
			applyClassification(item, result)
			if err := d.Items.Update(ctx, item); err != nil {
				d.Log.WithError(err).Warn("failed to store classification")
			}
		}
	}

	return map[string]interface{}{
		"created":  true,
		"id":       item.ID.String(),
		"content":  truncateRunes(item.Content, 200),
		"category": decoratedCategory(item),
		"summary":  item.Summary.String,
		"tags":     []string(item.Tags),
		"mutated":  true,
	}
}

func (d ToolDeps) handleUpdateItem(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	item, errMap := d.lookupItem(ctx, userID, input)
	if errMap != nil {
		return errMap
	}

	if content, ok := input["content"].(string); ok {
		item.Content = content
	}
	if category, ok := input["category"].(string); ok {
		item.Category = nullString(category)
	}
	if tags, ok := input["tags"]; ok {
		item.Tags = stringSlice(tags)
	}
	if priority, ok := input["priority"].(string); ok {
		item.Priority = nullString(priority)
	}
	if urgency, ok := input["urgency"].(string); ok {
		item.Urgency = nullString(urgency)
	}

	if err := d.Items.Update(ctx, item); err != nil {
		return errResult(err)
	}

	result := itemSummary(item)
	result["updated"] = true
	result["mutated"] = true
	return result
}

func (d ToolDeps) handleDeleteItem(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	item, errMap := d.lookupItem(ctx, userID, input)
	if errMap != nil {
		return errMap
	}

	preview := truncateRunes(item.Content, 80)
	if err := d.Items.Delete(ctx, userID, item.ID); err != nil {
		return errResult(err)
	}

	return map[string]interface{}{
		"deleted":         true,
		"id":              item.ID.String(),
		"content_preview": preview,
		"mutated":         true,
	}
}

func (d ToolDeps) handleMarkComplete(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	item, errMap := d.lookupItem(ctx, userID, input)
	if errMap != nil {
		return errMap
	}
	completed := boolArg(input, "completed", true)

	now := time.Now().UTC()
	item.IsCompleted = completed
	if completed {
		item.CompletedAt = sql.NullTime{Time: now, Valid: true}
		// Completing stops the recurring nag
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

	if err := d.Items.Update(ctx, item); err != nil {
		return errResult(err)
	}

	return map[string]interface{}{
		"completed": completed,
		"id":        item.ID.String(),
		"content":   truncateRunes(item.Content, 100),
		"mutated":   true,
	}
}

func (d ToolDeps) handleGetCounts(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	counts, err := d.Items.Counts(ctx, userID)
	if err != nil {
		return errResult(err)
	}
	return structToMap(counts)
}

func (d ToolDeps) handleGetUpcomingNotifications(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	days := intArg(input, "days", 7)
	if days < 1 {
		days = 1
	}
	if days > 30 {
		days = 30
	}

	items, err := d.Notifications.Upcoming(ctx, userID, days)
	if err != nil {
		return errResult(err)
	}

	results := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		entry := map[string]interface{}{
			"id":                     item.ID.String(),
			"content":                truncateRunes(item.Content, 100),
			"category":               item.Category.String,
			"notification_frequency": item.NotificationFrequency,
		}
		if item.NextNotificationAt.Valid {
			entry["next_notification_at"] = item.NextNotificationAt.Time.Format(time.RFC3339)
		}
		results = append(results, entry)
	}

	return map[string]interface{}{
		"count":      len(results),
		"days_ahead": days,
		"items":      results,
	}
}

func (d ToolDeps) handleGetDigestPreview(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	preview, err := d.Digest.Preview(ctx, userID)
	if err != nil {
		return errResult(err)
	}
	return structToMap(preview)
}

// handleGenerateDailyBriefing aggregates counts, digest, and the next three
// days of notifications into one payload
func (d ToolDeps) handleGenerateDailyBriefing(ctx context.Context, userID uuid.UUID, input map[string]interface{}) map[string]interface{} {
	counts := d.handleGetCounts(ctx, userID, nil)
	if _, failed := counts["error"]; failed {
		return counts
	}
	digest := d.handleGetDigestPreview(ctx, userID, nil)
	if _, failed := digest["error"]; failed {
		return digest
	}
	upcoming := d.handleGetUpcomingNotifications(ctx, userID, map[string]interface{}{"days": 3})
	if _, failed := upcoming["error"]; failed {
		return upcoming
	}

	return map[string]interface{}{
		"counts":                 counts,
		"urgent_items":           digest["urgent_items"],
		"urgent_count":           digest["urgent_count"],
		"pending_tasks":          digest["pending_tasks"],
		"tasks_count":            digest["tasks_count"],
		"upcoming_notifications": upcoming["items"],
		"upcoming_count":         upcoming["count"],
		"items_saved_this_week":  digest["items_saved_this_week"],
		"completed_this_week":    digest["completed_this_week"],
		"generated_at":           time.Now().UTC().Format(time.RFC3339),
	}
}

// ---------------------------------------------------------------------------
// Helpers

func (d ToolDeps) lookupItem(ctx context.Context, userID uuid.UUID, input map[string]interface{}) (*repository.Item, map[string]interface{}) {
	raw := stringArg(input, "item_id")
	if raw == "" {
		return nil, map[string]interface{}{"error": "item_id is required"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, map[string]interface{}{"error": "item_id is not a valid UUID"}
	}

	item, err := d.Items.Get(ctx, userID, id)
	if err != nil {
		return nil, errResult(err)
	}
	if item == nil {
		return nil, map[string]interface{}{"error": "item not found"}
	}
	return item, nil
}

func applyClassification(item *repository.Item, result *categorizer.Result) {
	item.Category = nullString(result.Category)
	item.Tags = repository.Tags(result.Tags)
	item.Summary = nullString(result.Summary)
	item.Confidence = sql.NullFloat64{Float64: result.Confidence, Valid: true}
	item.Priority = nullString(result.Priority)
	item.Urgency = nullString(result.Urgency)
	item.Intent = nullString(result.Intent)
	item.TimeContext = nullString(result.TimeContext)
	item.ActionRequired = result.ActionRequired
	item.NotificationEnabled = result.ShouldNotify
	item.NotificationFrequency = result.NotificationFrequency

	if meta, err := json.Marshal(result); err == nil {
		item.AIMetadata = meta
	}
}

func itemSummary(item *repository.Item) map[string]interface{} {
	return map[string]interface{}{
		"id":           item.ID.String(),
		"content":      truncateRunes(item.Content, 200),
		"category":     decoratedCategory(item),
		"summary":      item.Summary.String,
		"urgency":      item.Urgency.String,
		"tags":         []string(item.Tags),
		"is_completed": item.IsCompleted,
		"created_at":   item.CreatedAt.Format("Jan 02, 2006"),
	}
}

func decoratedCategory(item *repository.Item) string {
	if !item.Category.Valid || item.Category.String == "" {
		return "uncategorized"
	}
	emoji, ok := CategoryEmoji[item.Category.String]
	if !ok {
		emoji = "📌"
	}
	return emoji + " " + item.Category.String
}

func errResult(err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error()}
}

// structToMap flattens a struct with json tags into a result map
func structToMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errResult(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return errResult(err)
	}
	return out
}

func stringArg(input map[string]interface{}, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func intArg(input map[string]interface{}, key string, def int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func boolArg(input map[string]interface{}, key string, def bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return def
}

func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
