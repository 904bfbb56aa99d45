package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

const digestSectionLimit = 10
const digestPreviewLimit = 5

// ItemPreview is the trimmed item form shown in digests
type ItemPreview struct {
	ID               string `json:"id"`
	Content          string `json:"content"`
	Category         string `json:"category,omitempty"`
	NotificationDate string `json:"notification_date,omitempty"`
}

// DigestPreview is what the user's next weekly digest would contain
type DigestPreview struct {
	UserEmail             string        `json:"user_email"`
	UrgentCount           int           `json:"urgent_count"`
	TasksCount            int           `json:"tasks_count"`
	UpcomingCount         int           `json:"upcoming_count"`
	ItemsSavedThisWeek    int           `json:"items_saved_this_week"`
	CompletedThisWeek     int           `json:"completed_this_week"`
	UrgentItems           []ItemPreview `json:"urgent_items"`
	PendingTasks          []ItemPreview `json:"pending_tasks"`
	UpcomingNotifications []ItemPreview `json:"upcoming_notifications"`
}

// DigestService assembles weekly digest previews
type DigestService struct {
	items repository.ItemRepository
	users repository.UserRepository
	log   *logrus.Logger
}

// NewDigestService creates a digest service
func NewDigestService(items repository.ItemRepository, users repository.UserRepository, log *logrus.Logger) *DigestService {
	return &DigestService{items: items, users: users, log: log}
}

// Preview gathers the user's urgent items, pending tasks, notifications due in
// the next seven days, and this week's stats
func (s *DigestService) Preview(ctx context.Context, userID uuid.UUID) (*DigestPreview, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	weekAgo := now.AddDate(0, 0, -7)
	nextWeek := now.AddDate(0, 0, 7)

	urgent, err := s.items.ListUrgent(ctx, userID, digestSectionLimit)
	if err != nil {
		return nil, err
	}
	pending, err := s.items.ListPendingTasks(ctx, userID, digestSectionLimit)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.items.ListUpcomingNotifications(ctx, userID, now, nextWeek)
	if err != nil {
		return nil, err
	}
	saved, err := s.items.CountCreatedSince(ctx, userID, weekAgo)
	if err != nil {
		return nil, err
	}
	completed, err := s.items.CountCompletedSince(ctx, userID, weekAgo)
	if err != nil {
		return nil, err
	}

	preview := &DigestPreview{
		UrgentCount:           len(urgent),
		TasksCount:            len(pending),
		UpcomingCount:         len(upcoming),
		ItemsSavedThisWeek:    saved,
		CompletedThisWeek:     completed,
		UrgentItems:           previewItems(urgent, false),
		PendingTasks:          previewItems(pending, false),
		UpcomingNotifications: previewItems(upcoming, true),
	}
	if user != nil {
		preview.UserEmail = user.Email
	}

	return preview, nil
}

func previewItems(items []repository.Item, withDate bool) []ItemPreview {
	if len(items) > digestPreviewLimit {
		items = items[:digestPreviewLimit]
	}
	previews := make([]ItemPreview, 0, len(items))
	for _, item := range items {
		p := ItemPreview{
			ID:      item.ID.String(),
			Content: truncate(item.Content, 100),
		}
		if !withDate {
			p.Category = item.Category.String
		} else if item.NextNotificationAt.Valid {
			p.NotificationDate = item.NextNotificationAt.Time.Format(time.RFC3339)
		}
		previews = append(previews, p)
	}
	return previews
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
