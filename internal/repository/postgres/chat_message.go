package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

// ChatMessageRepository implements repository.ChatMessageRepository using PostgreSQL
type ChatMessageRepository struct {
	db *sqlx.DB
}

// NewChatMessageRepository creates a new PostgreSQL chat message repository
func NewChatMessageRepository(db *sqlx.DB) repository.ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

// Append persists a new message
func (r *ChatMessageRepository) Append(ctx context.Context, message *repository.ChatMessage) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO chat_messages (id, session_id, role, content, tool_calls, tool_results, created_at)
		VALUES (:id, :session_id, :role, :content, :tool_calls, :tool_results, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, message)
	return err
}

// ListBySession retrieves messages for a session, oldest first. The limit
// keeps the most recent messages, so a capped read drops the start of the
// conversation rather than the end.
func (r *ChatMessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]repository.ChatMessage, error) {
	var messages []repository.ChatMessage
	query := `
		SELECT * FROM (
			SELECT id, session_id, role, content, tool_calls, tool_results, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &messages, query, sessionID, limit); err != nil {
		return nil, err
	}

	return messages, nil
}
