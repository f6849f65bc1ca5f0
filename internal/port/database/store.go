// Package database defines the optional conversation persistence port.
package database

import (
	"context"

	"github.com/gridsage/gridsage/internal/domain/conversation"
)

// Store persists conversations keyed by session. Implementations must
// return domain.ErrNotFound when a session has no stored conversation.
type Store interface {
	CreateConversation(ctx context.Context, c *conversation.Conversation) error
	GetConversationBySession(ctx context.Context, sessionID string) (*conversation.Conversation, error)
	AppendTurns(ctx context.Context, conversationID string, turns []conversation.Turn) error
	ListTurns(ctx context.Context, conversationID string) ([]conversation.Turn, error)
	DeleteConversation(ctx context.Context, id string) error
}
