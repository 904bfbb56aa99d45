package notifications

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// Notification frequencies
const (
	FrequencyNever   = "never"
	FrequencyOnce    = "once"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ProcessResult summarizes one notification sweep
type ProcessResult struct {
	TotalProcessed int      `json:"total_processed"`
	Successful     int      `json:"successful"`
	Failed         int      `json:"failed"`
	ItemIDs        []string `json:"items"`
}

// Service delivers due notifications and answers upcoming-notification queries
type Service struct {
	items repository.ItemRepository
	users repository.UserRepository
	log   *logrus.Logger
}

// NewService creates a notification service
func NewService(items repository.ItemRepository, users repository.UserRepository, log *logrus.Logger) *Service {
	return &Service{items: items, users: users, log: log}
}

// Upcoming returns the user's scheduled notifications within the next
// days (clamped to 1..30)
func (s *Service) Upcoming(ctx context.Context, userID uuid.UUID, days int) ([]repository.Item, error) {
	if days < 1 {
		days = 1
	}
	if days > 30 {
		days = 30
	}
	now := time.Now().UTC()
	return s.items.ListUpcomingNotifications(ctx, userID, now, now.AddDate(0, 0, days))
}

// ProcessDue delivers every due notification and advances each item's
// schedule by its frequency. Meant to be driven periodically by the scheduler.
func (s *Service) ProcessDue(ctx context.Context) (*ProcessResult, error) {
	now := time.Now().UTC()
	items, err := s.items.ListDueNotifications(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{TotalProcessed: len(items)}
	for i := range items {
		item := &items[i]

		user, err := s.users.GetByID(ctx, item.UserID)
		if err != nil || user == nil {
			s.log.WithField("item_id", item.ID).Warn("skipping notification, owner not found")
			result.Failed++
			continue
		}

		if err := s.deliver(ctx, item, user, now); err != nil {
			s.log.WithError(err).WithField("item_id", item.ID).Error("failed to send notification")
			result.Failed++
			continue
		}
		result.Successful++
		result.ItemIDs = append(result.ItemIDs, item.ID.String())
	}

	return result, nil
}

// deliver sends one notification and reschedules the item. Delivery itself is
// a log line for now; the schedule bookkeeping is the part that matters.
func (s *Service) deliver(ctx context.Context, item *repository.Item, user *repository.User, now time.Time) error {
	s.log.WithFields(logrus.Fields{
		"user":      user.Email,
		"item_id":   item.ID,
		"category":  item.Category.String,
		"frequency": item.NotificationFrequency,
	}).Info("sending notification")

	item.LastNotifiedAt = sql.NullTime{Time: now, Valid: true}
	Reschedule(item, now)

	return s.items.Update(ctx, item)
}

// Reschedule advances next_notification_at by the item's frequency. One-shot
// and unknown frequencies disable further notifications.
func Reschedule(item *repository.Item, now time.Time) {
	switch item.NotificationFrequency {
	case FrequencyDaily:
		item.NextNotificationAt = sql.NullTime{Time: now.AddDate(0, 0, 1), Valid: true}
	case FrequencyWeekly:
		item.NextNotificationAt = sql.NullTime{Time: now.AddDate(0, 0, 7), Valid: true}
	case FrequencyMonthly:
		item.NextNotificationAt = sql.NullTime{Time: now.AddDate(0, 0, 30), Valid: true}
	default:
		item.NotificationEnabled = false
		item.NextNotificationAt = sql.NullTime{}
	}
}

// IsRecurring reports whether the frequency repeats
func IsRecurring(frequency string) bool {
	switch frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}
