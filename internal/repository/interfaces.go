package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User represents an account
type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Item represents one captured thought
type Item struct {
	ID                    uuid.UUID       `db:"id"`
	UserID                uuid.UUID       `db:"user_id"`
	Content               string          `db:"content"`
	URL                   sql.NullString  `db:"url"`
	Category              sql.NullString  `db:"category"`
	Summary               sql.NullString  `db:"summary"`
	Tags                  Tags            `db:"tags"`
	Confidence            sql.NullFloat64 `db:"confidence"`
	Priority              sql.NullString  `db:"priority"`
	Urgency               sql.NullString  `db:"urgency"`
	Intent                sql.NullString  `db:"intent"`
	TimeContext           sql.NullString  `db:"time_context"`
	ActionRequired        bool            `db:"action_required"`
	IsCompleted           bool            `db:"is_completed"`
	CompletedAt           sql.NullTime    `db:"completed_at"`
	LastSurfacedAt        sql.NullTime    `db:"last_surfaced_at"`
	NotificationEnabled   bool            `db:"notification_enabled"`
	NotificationFrequency string          `db:"notification_frequency"`
	NotificationDate      sql.NullTime    `db:"notification_date"`
	NextNotificationAt    sql.NullTime    `db:"next_notification_at"`
	LastNotifiedAt        sql.NullTime    `db:"last_notified_at"`
	AIMetadata            []byte          `db:"ai_metadata"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

// ChatSession represents one conversation thread
type ChatSession struct {
	ID           uuid.UUID      `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	Title        sql.NullString `db:"title"`
	AgentType    string         `db:"agent_type"`
	IsActive     bool           `db:"is_active"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastActiveAt time.Time      `db:"last_active_at"`
}

// SessionSummary is a ChatSession with its message count, for listing
type SessionSummary struct {
	ChatSession
	MessageCount int `db:"message_count"`
}

// Message roles
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolResult = "tool_result"
)

// ChatMessage represents one turn-unit within a session
type ChatMessage struct {
	ID          uuid.UUID      `db:"id"`
	SessionID   uuid.UUID      `db:"session_id"`
	Role        string         `db:"role"`
	Content     sql.NullString `db:"content"`
	ToolCalls   ToolCalls      `db:"tool_calls"`
	ToolResults ToolResults    `db:"tool_results"`
	CreatedAt   time.Time      `db:"created_at"`
}

// ToolCall is one tool invocation requested by the assistant
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of one tool invocation, matched by ToolUseID
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

// ToolCalls is a JSONB column of tool-call descriptors
type ToolCalls []ToolCall

func (t ToolCalls) Value() (driver.Value, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

func (t *ToolCalls) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// ToolResults is a JSONB column of tool-result descriptors
type ToolResults []ToolResult

func (t ToolResults) Value() (driver.Value, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

func (t *ToolResults) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// Tags is a JSONB column of string tags
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(t))
}

func (t *Tags) Scan(src interface{}) error {
	return scanJSON(src, t)
}

func scanJSON(src interface{}, dest interface{}) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
}

// SearchFilter narrows an item search
type SearchFilter struct {
	Search   string
	Module   string
	Category string
	Urgency  string
	Tag      string
	Page     int
	PageSize int
}

// ModuleCounts holds per-module item counts
type ModuleCounts struct {
	All       int `json:"all" db:"all"`
	Today     int `json:"today" db:"today"`
	Tasks     int `json:"tasks" db:"tasks"`
	ReadLater int `json:"read_later" db:"read_later"`
	Ideas     int `json:"ideas" db:"ideas"`
	Insights  int `json:"insights" db:"insights"`
	Reminders int `json:"reminders" db:"reminders"`
}

// UserRepository defines account storage operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// ItemRepository defines item storage operations
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, userID, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Search(ctx context.Context, userID uuid.UUID, filter SearchFilter) ([]Item, int, error)
	Counts(ctx context.Context, userID uuid.UUID) (*ModuleCounts, error)

	ListUrgent(ctx context.Context, userID uuid.UUID, limit int) ([]Item, error)
	ListPendingTasks(ctx context.Context, userID uuid.UUID, limit int) ([]Item, error)
	ListUpcomingNotifications(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Item, error)
	ListDueNotifications(ctx context.Context, now time.Time) ([]Item, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// ChatSessionRepository defines conversation-thread storage operations
type ChatSessionRepository interface {
	// GetOrCreate resolves sessionID to a session owned by userID, touching
	// last_active_at. An empty or unresolvable id falls back to creating a
	// fresh session for the user.
	GetOrCreate(ctx context.Context, userID uuid.UUID, sessionID string) (*ChatSession, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*ChatSession, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]SessionSummary, int, error)
	SetTitle(ctx context.Context, id uuid.UUID, title string) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// ChatMessageRepository defines message storage operations. Messages are
// append-only; they go away only when their session is deleted.
type ChatMessageRepository interface {
	Append(ctx context.Context, message *ChatMessage) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]ChatMessage, error)
}
