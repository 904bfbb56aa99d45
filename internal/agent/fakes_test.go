package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindstash/mindstash-backend/internal/categorizer"
	"github.com/mindstash/mindstash-backend/internal/providers"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// memSessions is an in-memory ChatSessionRepository
type memSessions struct {
	sessions map[uuid.UUID]*repository.ChatSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[uuid.UUID]*repository.ChatSession)}
}

func (m *memSessions) GetOrCreate(ctx context.Context, userID uuid.UUID, sessionID string) (*repository.ChatSession, error) {
	if id, err := uuid.Parse(sessionID); err == nil {
		if s, ok := m.sessions[id]; ok && s.UserID == userID {
			s.LastActiveAt = time.Now()
			return s, nil
		}
	}
	session := &repository.ChatSession{
		ID:           uuid.New(),
		UserID:       userID,
		AgentType:    DefaultAgentType,
		IsActive:     true,
		CreatedAt:    time.Now(),
		LastActiveAt: time.Now(),
	}
	m.sessions[session.ID] = session
	return session, nil
}

func (m *memSessions) Get(ctx context.Context, userID, id uuid.UUID) (*repository.ChatSession, error) {
	if s, ok := m.sessions[id]; ok && s.UserID == userID {
		return s, nil
	}
	return nil, nil
}

func (m *memSessions) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repository.SessionSummary, int, error) {
	var result []repository.SessionSummary
	for _, s := range m.sessions {
		if s.UserID == userID {
			result = append(result, repository.SessionSummary{ChatSession: *s})
		}
	}
	return result, len(result), nil
}

func (m *memSessions) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	if s, ok := m.sessions[id]; ok {
		s.Title = nullString(title)
	}
	return nil
}

func (m *memSessions) Delete(ctx context.Context, userID, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

// memMessages is an in-memory ChatMessageRepository
type memMessages struct {
	messages []repository.ChatMessage
	failNext bool
}

func newMemMessages() *memMessages {
	return &memMessages{}
}

func (m *memMessages) Append(ctx context.Context, message *repository.ChatMessage) error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("append failed")
	}
	message.ID = uuid.New()
	message.CreatedAt = time.Now()
	m.messages = append(m.messages, *message)
	return nil
}

func (m *memMessages) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]repository.ChatMessage, error) {
	var result []repository.ChatMessage
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			result = append(result, msg)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *memMessages) bySession(sessionID uuid.UUID) []repository.ChatMessage {
	msgs, _ := m.ListBySession(context.Background(), sessionID, 0)
	return msgs
}

// memItems is an in-memory ItemRepository
type memItems struct {
	items map[uuid.UUID]*repository.Item
}

func newMemItems() *memItems {
	return &memItems{items: make(map[uuid.UUID]*repository.Item)}
}

func (m *memItems) Create(ctx context.Context, item *repository.Item) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	stored := *item
	m.items[item.ID] = &stored
	return nil
}

func (m *memItems) Get(ctx context.Context, userID, id uuid.UUID) (*repository.Item, error) {
	if item, ok := m.items[id]; ok && item.UserID == userID {
		copied := *item
		return &copied, nil
	}
	return nil, nil
}

func (m *memItems) Update(ctx context.Context, item *repository.Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return fmt.Errorf("item not found")
	}
	item.UpdatedAt = time.Now()
	stored := *item
	m.items[item.ID] = &stored
	return nil
}

func (m *memItems) Delete(ctx context.Context, userID, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *memItems) Search(ctx context.Context, userID uuid.UUID, filter repository.SearchFilter) ([]repository.Item, int, error) {
	var result []repository.Item
	for _, item := range m.items {
		if item.UserID != userID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Content), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Category != "" && item.Category.String != filter.Category {
			continue
		}
		result = append(result, *item)
	}
	return result, len(result), nil
}

func (m *memItems) Counts(ctx context.Context, userID uuid.UUID) (*repository.ModuleCounts, error) {
	counts := &repository.ModuleCounts{}
	for _, item := range m.items {
		if item.UserID == userID {
			counts.All++
			if item.Category.String == "tasks" && !item.IsCompleted {
				counts.Tasks++
			}
		}
	}
	return counts, nil
}

func (m *memItems) ListUrgent(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range m.items {
		if item.UserID == userID && item.Urgency.String == "high" && !item.IsCompleted {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (m *memItems) ListPendingTasks(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range m.items {
		if item.UserID == userID && item.Category.String == "tasks" && !item.IsCompleted {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (m *memItems) ListUpcomingNotifications(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range m.items {
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

func (m *memItems) ListDueNotifications(ctx context.Context, now time.Time) ([]repository.Item, error) {
	var result []repository.Item
	for _, item := range m.items {
		if item.NotificationEnabled && item.NextNotificationAt.Valid && !item.NextNotificationAt.Time.After(now) {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (m *memItems) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, item := range m.items {
		if item.UserID == userID && item.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (m *memItems) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, item := range m.items {
		if item.UserID == userID && item.CompletedAt.Valid && item.CompletedAt.Time.After(since) {
			count++
		}
	}
	return count, nil
}

// scriptedProvider returns canned responses in order
type scriptedProvider struct {
	responses []*providers.CompletionResponse
	errs      []error
	calls     []providers.CompletionRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	p.calls = append(p.calls, req)
	idx := len(p.calls) - 1
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	if idx < len(p.responses) {
		return p.responses[idx], nil
	}
	// Out of script: behave like an end turn so tests fail on assertions
	// rather than hang
	return &providers.CompletionResponse{
		StopReason: providers.StopEndTurn,
		Content:    []providers.ContentBlock{providers.TextBlock("(unscripted)")},
	}, nil
}

func textResponse(text string) *providers.CompletionResponse {
	return &providers.CompletionResponse{
		StopReason: providers.StopEndTurn,
		Content:    []providers.ContentBlock{providers.TextBlock(text)},
	}
}

func toolUseResponse(text, id, name, input string) *providers.CompletionResponse {
	blocks := []providers.ContentBlock{}
	if text != "" {
		blocks = append(blocks, providers.TextBlock(text))
	}
	blocks = append(blocks, providers.ToolUseBlock(id, name, []byte(input)))
	return &providers.CompletionResponse{
		StopReason: providers.StopToolUse,
		Content:    blocks,
	}
}

// stubClassifier returns a fixed classification
type stubClassifier struct {
	result *categorizer.Result
	err    error
}

func (s *stubClassifier) Categorize(ctx context.Context, content, url string) (*categorizer.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func collect(events <-chan Event) []Event {
	var result []Event
	for e := range events {
		result = append(result, e)
	}
	return result
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
