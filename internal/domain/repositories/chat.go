package repositories

import (
	"context"

	"brightwell/internal/domain/models/chat"
)

// ConversationRepository persists conversations.
type ConversationRepository interface {
	Create(ctx context.Context, conv *chat.Conversation) error
	Get(ctx context.Context, id string) (*chat.Conversation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]chat.Conversation, error)
	UpdateVisibility(ctx context.Context, id, visibility string) error
	Delete(ctx context.Context, id string) error
}

// TurnRepository persists turns. Append is the only write primitive:
// turns are never mutated or individually removed, only deleted together
// with their conversation.
type TurnRepository interface {
	Append(ctx context.Context, turn *chat.Turn) error
	ListByConversation(ctx context.Context, conversationID string) ([]chat.Turn, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// TranslationRepository persists content translations created by the
// save_translation tool.
type TranslationRepository interface {
	// Save inserts a new translation. Returns a *domain.ConflictError when a
	// translation for the same (parent, locale) pair already exists.
	Save(ctx context.Context, tr *chat.Translation) error
	Update(ctx context.Context, tr *chat.Translation) error
	GetByParentLocale(ctx context.Context, parentID, locale string) (*chat.Translation, error)
}
