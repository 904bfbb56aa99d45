package notifications

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// itemStore is a minimal in-memory ItemRepository for these tests
type itemStore struct {
	items map[uuid.UUID]*repository.Item
}

func newItemStore() *itemStore {
	return &itemStore{items: make(map[uuid.UUID]*repository.Item)}
}

func (s *itemStore) add(item repository.Item) *repository.Item {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	s.items[item.ID] = &item
	return &item
}

func (s *itemStore) Create(ctx context.Context, item *repository.Item) error {
	*item = *s.add(*item)
	return nil
}

func (s *itemStore) Get(ctx context.Context, userID, id uuid.UUID) (*repository.Item, error) {
	if item, ok := s.items[id]; ok && item.UserID == userID {
		copied := *item
		return &copied, nil
	}
	return nil, nil
}

func (s *itemStore) Update(ctx context.Context, item *repository.Item) error {
	stored := *item
	s.items[item.ID] = &stored
	return nil
}

func (s *itemStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	delete(s.items, id)
	return nil
}

func (s *itemStore) Search(ctx context.Context, userID uuid.UUID, filter repository.SearchFilter) ([]repository.Item, int, error) {
	return nil, 0, nil
}

func (s *itemStore) Counts(ctx context.Context, userID uuid.UUID) (*repository.ModuleCounts, error) {
	return &repository.ModuleCounts{}, nil
}

func (s *itemStore) ListUrgent(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range s.items {
		if item.UserID == userID && item.Urgency.String == "high" && !item.IsCompleted {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (s *itemStore) ListPendingTasks(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range s.items {
		if item.UserID == userID && item.Category.String == "tasks" && !item.IsCompleted {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (s *itemStore) ListUpcomingNotifications(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range s.items {
		if item.UserID != userID || !item.NotificationEnabled || !item.NextNotificationAt.Valid {
			continue
		}
		at := item.NextNotificationAt.Time
		if !at.Before(from) && !at.After(to) {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (s *itemStore) ListDueNotifications(ctx context.Context, now time.Time) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range s.items {
		if item.NotificationEnabled && item.NextNotificationAt.Valid && !item.NextNotificationAt.Time.After(now) {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (s *itemStore) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, item := range s.items {
		if item.UserID == userID && item.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *itemStore) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, item := range s.items {
		if item.UserID == userID && item.CompletedAt.Valid && item.CompletedAt.Time.After(since) {
			count++
		}
	}
	return count, nil
}

// userStore is a minimal in-memory UserRepository
type userStore struct {
	users map[uuid.UUID]*repository.User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[uuid.UUID]*repository.User)}
}

func (s *userStore) Create(ctx context.Context, user *repository.User) error {
	user.ID = uuid.New()
	s.users[user.ID] = user
	return nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *userStore) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	return s.users[id], nil
}

func TestRescheduleSteps(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	daily := &repository.Item{NotificationEnabled: true, NotificationFrequency: FrequencyDaily}
	Reschedule(daily, now)
	assert.Equal(t, now.AddDate(0, 0, 1), daily.NextNotificationAt.Time)
	assert.True(t, daily.NotificationEnabled)

	weekly := &repository.Item{NotificationEnabled: true, NotificationFrequency: FrequencyWeekly}
	Reschedule(weekly, now)
	assert.Equal(t, now.AddDate(0, 0, 7), weekly.NextNotificationAt.Time)

	monthly := &repository.Item{NotificationEnabled: true, NotificationFrequency: FrequencyMonthly}
	Reschedule(monthly, now)
	assert.Equal(t, now.AddDate(0, 0, 30), monthly.NextNotificationAt.Time)
}

func TestRescheduleDisablesOneShot(t *testing.T) {
	for _, frequency := range []string{FrequencyOnce, FrequencyNever, "", "bogus"} {
		item := &repository.Item{
			NotificationEnabled:   true,
			NotificationFrequency: frequency,
			NextNotificationAt:    sql.NullTime{Time: time.Now(), Valid: true},
		}
		Reschedule(item, time.Now())
		assert.False(t, item.NotificationEnabled, "frequency %q", frequency)
		assert.False(t, item.NextNotificationAt.Valid, "frequency %q", frequency)
	}
}

func TestIsRecurring(t *testing.T) {
	assert.True(t, IsRecurring(FrequencyDaily))
	assert.True(t, IsRecurring(FrequencyWeekly))
	assert.True(t, IsRecurring(FrequencyMonthly))
	assert.False(t, IsRecurring(FrequencyOnce))
	assert.False(t, IsRecurring(FrequencyNever))
	assert.False(t, IsRecurring(""))
}

func TestUpcomingClampsDays(t *testing.T) {
	items := newItemStore()
	users := newUserStore()
	svc := NewService(items, users, testLogger())
	userID := uuid.New()

	items.add(repository.Item{
		UserID:                userID,
		Content:               "near",
		NotificationEnabled:   true,
		NotificationFrequency: FrequencyOnce,
		NextNotificationAt:    sql.NullTime{Time: time.Now().UTC().Add(12 * time.Hour), Valid: true},
	})
	items.add(repository.Item{
		UserID:                userID,
		Content:               "far",
		NotificationEnabled:   true,
		NotificationFrequency: FrequencyOnce,
		NextNotificationAt:    sql.NullTime{Time: time.Now().UTC().AddDate(0, 0, 45), Valid: true},
	})

	// days below 1 clamps to a single day
	result, err := svc.Upcoming(context.Background(), userID, -5)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "near", result[0].Content)

	// days above 30 clamps to 30, which still excludes the 45-day item
	result, err = svc.Upcoming(context.Background(), userID, 90)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestProcessDueAdvancesSchedule(t *testing.T) {
	items := newItemStore()
	users := newUserStore()
	svc := NewService(items, users, testLogger())

	owner := &repository.User{Email: "owner@example.com"}
	require.NoError(t, users.Create(context.Background(), owner))

	recurring := items.add(repository.Item{
		UserID:                owner.ID,
		Content:               "stretch",
		NotificationEnabled:   true,
		NotificationFrequency: FrequencyDaily,
		NextNotificationAt:    sql.NullTime{Time: time.Now().UTC().Add(-time.Hour), Valid: true},
	})
	oneShot := items.add(repository.Item{
		UserID:                owner.ID,
		Content:               "renew passport",
		NotificationEnabled:   true,
		NotificationFrequency: FrequencyOnce,
		NextNotificationAt:    sql.NullTime{Time: time.Now().UTC().Add(-time.Hour), Valid: true},
	})
	orphan := items.add(repository.Item{
		UserID:                uuid.New(),
		Content:               "no owner",
		NotificationEnabled:   true,
		NotificationFrequency: FrequencyOnce,
		NextNotificationAt:    sql.NullTime{Time: time.Now().UTC().Add(-time.Hour), Valid: true},
	})

	result, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)

	stored, _ := items.Get(context.Background(), owner.ID, recurring.ID)
	assert.True(t, stored.NotificationEnabled)
	assert.True(t, stored.NextNotificationAt.Valid)
	assert.True(t, stored.NextNotificationAt.Time.After(time.Now()))
	assert.True(t, stored.LastNotifiedAt.Valid)

	stored, _ = items.Get(context.Background(), owner.ID, oneShot.ID)
	assert.False(t, stored.NotificationEnabled)
	assert.False(t, stored.NextNotificationAt.Valid)

	stored, _ = items.Get(context.Background(), orphan.UserID, orphan.ID)
	assert.True(t, stored.NotificationEnabled)
}
