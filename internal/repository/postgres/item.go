package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

const itemColumns = `id, user_id, content, url, category, summary, tags, confidence, priority, urgency,
	intent, time_context, action_required, is_completed, completed_at, last_surfaced_at,
	notification_enabled, notification_frequency, notification_date, next_notification_at,
	last_notified_at, ai_metadata, created_at, updated_at`

// Module filter fragments. The "today" view mixes urgency, time context, and
// resurfacing age the same way the dashboard does.
const todayFilter = `(
	urgency = 'high'
	OR time_context = 'immediate'
	OR (time_context = 'next_week' AND created_at <= NOW() - INTERVAL '7 days')
	OR (action_required AND last_surfaced_at IS NULL)
	OR (action_required AND last_surfaced_at < NOW() - INTERVAL '3 days')
	OR (intent = 'learn' AND (last_surfaced_at IS NULL OR last_surfaced_at < NOW() - INTERVAL '7 days'))
)`

const tasksFilter = `(category = 'tasks' OR (action_required AND intent = 'task'))`
const readLaterFilter = `(category IN ('read', 'watch', 'learn') OR intent = 'learn')`
const ideasFilter = `(category = 'ideas' OR intent = 'idea')`
const insightsFilter = `(category IN ('journal', 'notes') OR intent = 'reflection')`
const remindersFilter = `(notification_enabled AND next_notification_at IS NOT NULL)`

// ItemRepository implements repository.ItemRepository using PostgreSQL
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new PostgreSQL item repository
func NewItemRepository(db *sqlx.DB) repository.ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, item *repository.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	if item.NotificationFrequency == "" {
		item.NotificationFrequency = "never"
	}

	query := `
		INSERT INTO items (id, user_id, content, url, category, summary, tags, confidence, priority, urgency,
			intent, time_context, action_required, is_completed, completed_at, last_surfaced_at,
			notification_enabled, notification_frequency, notification_date, next_notification_at,
			last_notified_at, ai_metadata, created_at, updated_at)
		VALUES (:id, :user_id, :content, :url, :category, :summary, :tags, :confidence, :priority, :urgency,
			:intent, :time_context, :action_required, :is_completed, :completed_at, :last_surfaced_at,
			:notification_enabled, :notification_frequency, :notification_date, :next_notification_at,
			:last_notified_at, :ai_metadata, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, item)
	return err
}

// Get retrieves an item owned by the user
func (r *ItemRepository) Get(ctx context.Context, userID, id uuid.UUID) (*repository.Item, error) {
	var item repository.Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &item, query, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &item, nil
}

// Update writes the full item row back
func (r *ItemRepository) Update(ctx context.Context, item *repository.Item) error {
	item.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE items SET
			content = :content, url = :url, category = :category, summary = :summary, tags = :tags,
			confidence = :confidence, priority = :priority, urgency = :urgency, intent = :intent,
			time_context = :time_context, action_required = :action_required, is_completed = :is_completed,
			completed_at = :completed_at, last_surfaced_at = :last_surfaced_at,
			notification_enabled = :notification_enabled, notification_frequency = :notification_frequency,
			notification_date = :notification_date, next_notification_at = :next_notification_at,
			last_notified_at = :last_notified_at, ai_metadata = :ai_metadata, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`

	_, err := r.db.NamedExecContext(ctx, query, item)
	return err
}

// Delete deletes an item owned by the user
func (r *ItemRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

// Search filters the user's items and returns one page plus the total count
func (r *ItemRepository) Search(ctx context.Context, userID uuid.UUID, filter repository.SearchFilter) ([]repository.Item, int, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	add := func(cond string, vals ...interface{}) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		conds = append(conds, cond)
	}

	if clause := moduleFilter(filter.Module); clause != "" {
		conds = append(conds, clause)
	}
	if filter.Category != "" {
		add("category = ?", filter.Category)
	}
	if filter.Urgency != "" {
		add("urgency = ?", filter.Urgency)
	}
	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		add("(LOWER(content) LIKE ? OR LOWER(COALESCE(summary, '')) LIKE ? OR LOWER(tags::text) LIKE ?)",
			term, term, term)
	}
	if filter.Tag != "" {
		tagJSON, err := json.Marshal([]string{filter.Tag})
		if err != nil {
			return nil, 0, err
		}
		add("tags @> ?", string(tagJSON))
	}

	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM items WHERE "+where, args...); err != nil {
		return nil, 0, err
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

	orderBy := "created_at DESC"
	if filter.Module == "reminders" {
		orderBy = "next_notification_at ASC"
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf("SELECT %s FROM items WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		itemColumns, where, orderBy, len(args)-1, len(args))

	var items []repository.Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func moduleFilter(module string) string {
	switch module {
	case "today":
		return todayFilter
	case "tasks":
		return tasksFilter
	case "read_later":
		return readLaterFilter
	case "ideas":
		return ideasFilter
	case "insights":
		return insightsFilter
	case "reminders":
		return remindersFilter
	default:
		return ""
	}
}

// Counts returns per-module item counts in a single query
func (r *ItemRepository) Counts(ctx context.Context, userID uuid.UUID) (*repository.ModuleCounts, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS "all",
			COUNT(*) FILTER (WHERE %s) AS today,
			COUNT(*) FILTER (WHERE %s) AS tasks,
			COUNT(*) FILTER (WHERE %s) AS read_later,
			COUNT(*) FILTER (WHERE %s) AS ideas,
			COUNT(*) FILTER (WHERE %s) AS insights,
			COUNT(*) FILTER (WHERE %s) AS reminders
		FROM items
		WHERE user_id = $1
	`, todayFilter, tasksFilter, readLaterFilter, ideasFilter, insightsFilter, remindersFilter)

	var counts repository.ModuleCounts
	if err := r.db.GetContext(ctx, &counts, query, userID); err != nil {
		return nil, err
	}

	return &counts, nil
}

// ListUrgent returns the user's most recent incomplete high-urgency items
func (r *ItemRepository) ListUrgent(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Item, error) {
	var items []repository.Item
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE user_id = $1 AND NOT is_completed AND urgency = 'high'
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &items, query, userID, limit); err != nil {
		return nil, err
	}
	return items, nil
}

// ListPendingTasks returns incomplete items still requiring action
func (r *ItemRepository) ListPendingTasks(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Item, error) {
	var items []repository.Item
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE user_id = $1 AND NOT is_completed AND action_required
		ORDER BY urgency DESC, created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &items, query, userID, limit); err != nil {
		return nil, err
	}
	return items, nil
}

// ListUpcomingNotifications returns the user's enabled notifications scheduled
// within [from, to], soonest first
func (r *ItemRepository) ListUpcomingNotifications(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]repository.Item, error) {
	var items []repository.Item
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE user_id = $1 AND notification_enabled AND NOT is_completed
			AND next_notification_at IS NOT NULL
			AND next_notification_at >= $2 AND next_notification_at <= $3
		ORDER BY next_notification_at ASC`

	if err := r.db.SelectContext(ctx, &items, query, userID, from, to); err != nil {
		return nil, err
	}
	return items, nil
}

// ListDueNotifications returns all items, across users, whose notification is due
func (r *ItemRepository) ListDueNotifications(ctx context.Context, now time.Time) ([]repository.Item, error) {
	var items []repository.Item
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE notification_enabled AND NOT is_completed
			AND next_notification_at IS NOT NULL AND next_notification_at <= $1
		ORDER BY next_notification_at ASC`

	if err := r.db.SelectContext(ctx, &items, query, now); err != nil {
		return nil, err
	}
	return items, nil
}

// CountCreatedSince counts the user's items created after since
func (r *ItemRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM items WHERE user_id = $1 AND created_at >= $2`, userID, since)
	return count, err
}

// CountCompletedSince counts the user's items completed after since
func (r *ItemRepository) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM items WHERE user_id = $1 AND is_completed AND completed_at >= $2`, userID, since)
	return count, err
}
