package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"brightwell/internal/domain"
	"brightwell/internal/domain/models/chat"
	"brightwell/internal/domain/repositories"
	"brightwell/internal/repository/postgres"
)

// ConversationRepository implements repositories.ConversationRepository on PostgreSQL.
type ConversationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(config *postgres.RepositoryConfig) repositories.ConversationRepository {
	return &ConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new conversation. The id is caller-supplied so clients
// can reference a conversation before its first turn is persisted.
func (r *ConversationRepository) Create(ctx context.Context, conv *chat.Conversation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, visibility, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.Visibility,
		conv.CreatedAt,
	).Scan(&conv.CreatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("conversation %s already exists", conv.ID),
				ResourceType: "conversation",
				ResourceID:   conv.ID,
			}
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// Get retrieves a conversation by id.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, visibility, created_at
		FROM %s
		WHERE id = $1
	`, r.tables.Conversations)

	var conv chat.Conversation
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.Visibility,
		&conv.CreatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// ListByUser retrieves the caller's conversations, newest first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]chat.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, visibility, created_at
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []chat.Conversation
	for rows.Next() {
		var conv chat.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.Visibility,
			&conv.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// UpdateVisibility sets a conversation's visibility.
func (r *ConversationRepository) UpdateVisibility(ctx context.Context, id, visibility string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET visibility = $2 WHERE id = $1
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, visibility)
	if err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a conversation row. Turns are deleted separately by the
// TurnRepository within the same transaction.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
