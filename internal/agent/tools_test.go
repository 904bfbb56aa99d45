package agent

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mindstash/mindstash-backend/internal/categorizer"
	"github.com/mindstash/mindstash-backend/internal/notifications"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

type memUsers struct {
	users map[uuid.UUID]*repository.User
}

func (m *memUsers) Create(ctx context.Context, user *repository.User) error {
	user.ID = uuid.New()
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	return m.users[id], nil
}

func newTestTools(classifier Classifier) (*ToolRegistry, *memItems) {
	items := newMemItems()
	users := &memUsers{users: make(map[uuid.UUID]*repository.User)}
	log := testLogger()

	registry := NewToolRegistry(log)
	RegisterTools(registry, ToolDeps{
		Items:         items,
		Notifications: notifications.NewService(items, users, log),
		Digest:        notifications.NewDigestService(items, users, log),
		Classifier:    classifier,
		Log:           log,
	})
	return registry, items
}

func TestRegisterToolsExposesFullSet(t *testing.T) {
	registry, _ := newTestTools(nil)
	schemas := registry.Schemas(DefaultAgentType)
	require.Len(t, schemas, 9)
	assert.Equal(t, "search_items", schemas[0].Name)
	assert.Equal(t, "generate_daily_briefing", schemas[8].Name)
}

func TestCreateItemToolClassifies(t *testing.T) {
	classifier := &stubClassifier{result: &categorizer.Result{
		Category:              "tasks",
		Tags:                  []string{"plants", "home"},
		Summary:               "Water the plants",
		Confidence:            0.9,
		Priority:              "medium",
		Urgency:               "low",
		NotificationFrequency: "never",
	}}
	registry, items := newTestTools(classifier)
	userID := uuid.New()

	result := registry.Execute(context.Background(), "create_item", userID, map[string]interface{}{
		"content": "water the plants",
	})

	require.NotContains(t, result, "error")
	assert.Equal(t, true, result["created"])
	assert.Equal(t, true, result["mutated"])
	assert.Equal(t, "✅ tasks", result["category"])

	stored, err := items.Get(context.Background(), userID, uuid.MustParse(result["id"].(string)))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "tasks", stored.Category.String)
	assert.Equal(t, repository.Tags{"plants", "home"}, stored.Tags)
	assert.NotEmpty(t, stored.AIMetadata)
}

func TestCreateItemToolValidation(t *testing.T) {
	registry, _ := newTestTools(nil)
	userID := uuid.New()

	result := registry.Execute(context.Background(), "create_item", userID, map[string]interface{}{"content": "  "})
	assert.Equal(t, "content is required", result["error"])

	result = registry.Execute(context.Background(), "create_item", userID, map[string]interface{}{
		"content": strings.Repeat("x", 501),
	})
	assert.Equal(t, "content must be 500 characters or less", result["error"])
}

func TestCreateItemToolSurvivesClassifierFailure(t *testing.T) {
	classifier := &stubClassifier{err: assert.AnError}
	registry, items := newTestTools(classifier)
	userID := uuid.New()

	result := registry.Execute(context.Background(), "create_item", userID, map[string]interface{}{
		"content": "a thought",
	})

	require.NotContains(t, result, "error")
	assert.Equal(t, "uncategorized", result["category"])

	stored, _ := items.Get(context.Background(), userID, uuid.MustParse(result["id"].(string)))
	require.NotNil(t, stored)
	assert.False(t, stored.Category.Valid)
}

func TestUpdateItemTool(t *testing.T) {
	registry, items := newTestTools(nil)
	userID := uuid.New()

	item := &repository.Item{UserID: userID, Content: "old content"}
	require.NoError(t, items.Create(context.Background(), item))

	result := registry.Execute(context.Background(), "update_item", userID, map[string]interface{}{
		"item_id": item.ID.String(),
		"content": "new content",
		"urgency": "high",
		"tags":    []interface{}{"one", "two"},
	})

	require.NotContains(t, result, "error")
	assert.Equal(t, true, result["updated"])
	assert.Equal(t, true, result["mutated"])

	stored, _ := items.Get(context.Background(), userID, item.ID)
	assert.Equal(t, "new content", stored.Content)
	assert.Equal(t, "high", stored.Urgency.String)
	assert.Equal(t, repository.Tags{"one", "two"}, stored.Tags)
}

func TestDeleteItemTool(t *testing.T) {
	registry, items := newTestTools(nil)
	userID := uuid.New()

	item := &repository.Item{UserID: userID, Content: "goodbye"}
	require.NoError(t, items.Create(context.Background(), item))

	result := registry.Execute(context.Background(), "delete_item", userID, map[string]interface{}{
		"item_id": item.ID.String(),
	})
	assert.Equal(t, true, result["deleted"])
	assert.Equal(t, true, result["mutated"])

	stored, _ := items.Get(context.Background(), userID, item.ID)
	assert.Nil(t, stored)
}

func TestDeleteItemToolBadID(t *testing.T) {
	registry, _ := newTestTools(nil)
	result := registry.Execute(context.Background(), "delete_item", uuid.New(), map[string]interface{}{
		"item_id": "nope",
	})
	assert.Equal(t, "item_id is not a valid UUID", result["error"])

	result = registry.Execute(context.Background(), "delete_item", uuid.New(), map[string]interface{}{
		"item_id": uuid.New().String(),
	})
	assert.Equal(t, "item not found", result["error"])
}

func TestMarkCompleteDisablesRecurringNotification(t *testing.T) {
	registry, items := newTestTools(nil)
	userID := uuid.New()

	item := &repository.Item{
		UserID:                userID,
		Content:               "stretch every day",
		NotificationEnabled:   true,
		NotificationFrequency: "daily",
		NextNotificationAt:    sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true},
	}
	require.NoError(t, items.Create(context.Background(), item))

	result := registry.Execute(context.Background(), "mark_complete", userID, map[string]interface{}{
		"item_id":   item.ID.String(),
		"completed": true,
	})
	require.NotContains(t, result, "error")
	assert.Equal(t, true, result["mutated"])

	stored, _ := items.Get(context.Background(), userID, item.ID)
	assert.True(t, stored.IsCompleted)
	assert.True(t, stored.CompletedAt.Valid)
	assert.False(t, stored.NotificationEnabled)
	assert.False(t, stored.NextNotificationAt.Valid)
}

func TestMarkIncompleteRestoresFutureNotification(t *testing.T) {
	registry, items := newTestTools(nil)
	userID := uuid.New()

	future := time.Now().Add(48 * time.Hour)
	item := &repository.Item{
		UserID:                userID,
		Content:               "renew passport",
		IsCompleted:           true,
		CompletedAt:           sql.NullTime{Time: time.Now(), Valid: true},
		NotificationFrequency: "once",
		NotificationDate:      sql.NullTime{Time: future, Valid: true},
	}
	require.NoError(t, items.Create(context.Background(), item))

	result := registry.Execute(context.Background(), "mark_complete", userID, map[string]interface{}{
		"item_id":   item.ID.String(),
		"completed": false,
	})
	require.NotContains(t, result, "error")

	stored, _ := items.Get(context.Background(), userID, item.ID)
	assert.False(t, stored.IsCompleted)
	assert.False(t, stored.CompletedAt.Valid)
	assert.True(t, stored.NotificationEnabled)
	require.True(t, stored.NextNotificationAt.Valid)
	assert.Equal(t, future.Unix(), stored.NextNotificationAt.Time.Unix())
}

func TestSearchItemsTool(t *testing.T) {
	registry, items := newTestTools(nil)
	userID := uuid.New()

	require.NoError(t, items.Create(context.Background(), &repository.Item{UserID: userID, Content: "read the go proverbs"}))
	require.NoError(t, items.Create(context.Background(), &repository.Item{UserID: userID, Content: "buy milk"}))
	require.NoError(t, items.Create(context.Background(), &repository.Item{UserID: uuid.New(), Content: "someone else's note"}))

	result := registry.Execute(context.Background(), "search_items", userID, map[string]interface{}{
		"search": "go proverbs",
	})
	require.NotContains(t, result, "error")
	assert.Equal(t, 1, result["total"])
	assert.Equal(t, 1, result["page"])
	assert.Equal(t, 10, result["page_size"])

	entries := result["items"].([]map[string]interface{})
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0]["content"], "go proverbs")
}

func TestGetCountsTool(t *testing.T) {
	registry, items := newTestTools(nil)
	userID := uuid.New()

	require.NoError(t, items.Create(context.Background(), &repository.Item{UserID: userID, Content: "a note"}))
	require.NoError(t, items.Create(context.Background(), &repository.Item{
		UserID: userID, Content: "a task", Category: sql.NullString{String: "tasks", Valid: true},
	}))

	result := registry.Execute(context.Background(), "get_counts", userID, nil)
	require.NotContains(t, result, "error")
	assert.EqualValues(t, 2, result["all"])
	assert.EqualValues(t, 1, result["tasks"])
}

func TestDailyBriefingTool(t *testing.T) {
	registry, items := newTestTools(nil)
	userID := uuid.New()

	require.NoError(t, items.Create(context.Background(), &repository.Item{
		UserID:  userID,
		Content: "urgent thing",
		Urgency: sql.NullString{String: "high", Valid: true},
	}))
	require.NoError(t, items.Create(context.Background(), &repository.Item{
		UserID:                userID,
		Content:               "call dentist",
		Category:              sql.NullString{String: "tasks", Valid: true},
		NotificationEnabled:   true,
		NotificationFrequency: "once",
		NextNotificationAt:    sql.NullTime{Time: time.Now().Add(24 * time.Hour), Valid: true},
	}))

	result := registry.Execute(context.Background(), "generate_daily_briefing", userID, nil)
	require.NotContains(t, result, "error")

	assert.Contains(t, result, "counts")
	assert.Contains(t, result, "urgent_items")
	assert.Contains(t, result, "pending_tasks")
	assert.Contains(t, result, "upcoming_notifications")
	assert.Contains(t, result, "generated_at")
	assert.Equal(t, 1, result["upcoming_count"])
}
