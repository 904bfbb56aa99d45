package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

const sessionColumns = `id, user_id, title, agent_type, is_active, created_at, updated_at, last_active_at`

// ChatSessionRepository implements repository.ChatSessionRepository using PostgreSQL
type ChatSessionRepository struct {
	db *sqlx.DB
}

// NewChatSessionRepository creates a new PostgreSQL chat session repository
func NewChatSessionRepository(db *sqlx.DB) repository.ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

// GetOrCreate resolves an existing session for the user or creates a fresh one.
// An id that does not parse, does not exist, or belongs to another user falls
// back to creation rather than failing.
func (r *ChatSessionRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, sessionID string) (*repository.ChatSession, error) {
	if sessionID != "" {
		if id, parseErr := uuid.Parse(sessionID); parseErr == nil {
			var session repository.ChatSession
			query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1 AND user_id = $2`
			err := r.db.GetContext(ctx, &session, query, id, userID)
			if err == nil {
				now := time.Now().UTC()
				_, err = r.db.ExecContext(ctx,
					`UPDATE chat_sessions SET last_active_at = $1, updated_at = $1 WHERE id = $2`,
					now, session.ID)
				if err != nil {
					return nil, err
				}
				session.LastActiveAt = now
				session.UpdatedAt = now
				return &session, nil
			}
			if err != sql.ErrNoRows {
				return nil, err
			}
		}
	}

	now := time.Now().UTC()
	session := repository.ChatSession{
		ID:           uuid.New(),
		UserID:       userID,
		AgentType:    "assistant",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}

	query := `
		INSERT INTO chat_sessions (id, user_id, title, agent_type, is_active, created_at, updated_at, last_active_at)
		VALUES (:id, :user_id, :title, :agent_type, :is_active, :created_at, :updated_at, :last_active_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

// Get retrieves a session owned by the user
func (r *ChatSessionRepository) Get(ctx context.Context, userID, id uuid.UUID) (*repository.ChatSession, error) {
	var session repository.ChatSession
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &session, query, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// List retrieves the user's sessions ordered by most recently active,
// each with its message count
func (r *ChatSessionRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repository.SessionSummary, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM chat_sessions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	var sessions []repository.SessionSummary
	query := `
		SELECT s.id, s.user_id, s.title, s.agent_type, s.is_active, s.created_at, s.updated_at, s.last_active_at,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id) AS message_count
		FROM chat_sessions s
		WHERE s.user_id = $1
		ORDER BY s.last_active_at DESC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &sessions, query, userID, limit, offset); err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// SetTitle sets a session title
func (r *ChatSessionRepository) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET title = $1, updated_at = $2 WHERE id = $3`,
		title, time.Now().UTC(), id)
	return err
}

// Delete deletes a session owned by the user; messages cascade
func (r *ChatSessionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}
