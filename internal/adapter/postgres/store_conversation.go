package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/conversation"
)

func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, session_id)
		 VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		c.ID, c.SessionID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversationBySession(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, created_at, updated_at
		 FROM conversations WHERE session_id = $1`,
		sessionID,
	).Scan(&c.ID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	c.Turns, err = s.ListTurns(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) AppendTurns(ctx context.Context, conversationID string, turns []conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("append turns: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range turns {
		var toolCalls []byte
		if len(t.ToolCalls) > 0 {
			toolCalls, err = json.Marshal(t.ToolCalls)
			if err != nil {
				return fmt.Errorf("marshal tool calls: %w", err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_turns
			   (conversation_id, role, content, tool_calls, tool_call_id, tool_name, is_error, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			conversationID, t.Role, t.Content, toolCalls, t.ToolCallID, t.ToolName, t.IsError, t.CreatedAt,
		); err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("append turns: commit: %w", err)
	}
	return nil
}

func (s *Store) ListTurns(ctx context.Context, conversationID string) ([]conversation.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, tool_calls, tool_call_id, tool_name, is_error, created_at
		 FROM conversation_turns WHERE conversation_id = $1 ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var result []conversation.Turn
	for rows.Next() {
		var t conversation.Turn
		var toolCalls []byte
		if err := rows.Scan(&t.Role, &t.Content, &toolCalls, &t.ToolCallID,
			&t.ToolName, &t.IsError, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if len(toolCalls) > 0 {
			if err := json.Unmarshal(toolCalls, &t.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete conversation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
