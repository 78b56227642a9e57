package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"brightwell/internal/domain"
	"brightwell/internal/domain/models/chat"
	"brightwell/internal/domain/repositories"
	"brightwell/internal/repository/postgres"
)

// TurnRepository implements repositories.TurnRepository on PostgreSQL.
// Parts and attachments are stored as opaque JSONB: the database preserves
// and returns them without interpreting their structure.
type TurnRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewTurnRepository creates a new TurnRepository.
func NewTurnRepository(config *postgres.RepositoryConfig) repositories.TurnRepository {
	return &TurnRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Append inserts a turn at the end of its conversation. Turns carry their
// own ids so retried assistant writes stay idempotent.
func (r *TurnRepository) Append(ctx context.Context, turn *chat.Turn) error {
	parts, err := chat.MarshalParts(turn.Parts)
	if err != nil {
		return fmt.Errorf("encode parts: %w", err)
	}

	attachments := turn.Attachments
	if attachments == nil {
		attachments = []chat.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, role, parts, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		turn.ID,
		turn.ConversationID,
		turn.Role,
		parts,
		attachmentsJSON,
		turn.CreatedAt,
	)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			// Retried write of the same deterministic turn id - already durable.
			r.logger.Debug("turn already persisted", "turn_id", turn.ID)
			return nil
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("conversation %s: %w", turn.ConversationID, domain.ErrNotFound)
		}
		return fmt.Errorf("append turn: %w", err)
	}

	return nil
}

// ListByConversation returns a conversation's turns in chronological order.
func (r *TurnRepository) ListByConversation(ctx context.Context, conversationID string) ([]chat.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, role, parts, attachments, created_at
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var (
			turn            chat.Turn
			partsJSON       []byte
			attachmentsJSON []byte
		)
		err := rows.Scan(
			&turn.ID,
			&turn.ConversationID,
			&turn.Role,
			&partsJSON,
			&attachmentsJSON,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}

		if turn.Parts, err = chat.UnmarshalParts(partsJSON); err != nil {
			return nil, fmt.Errorf("turn %s: %w", turn.ID, err)
		}
		if len(attachmentsJSON) > 0 {
			if err := json.Unmarshal(attachmentsJSON, &turn.Attachments); err != nil {
				return nil, fmt.Errorf("turn %s attachments: %w", turn.ID, err)
			}
		}

		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

// DeleteByConversation removes all turns of a conversation.
func (r *TurnRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, conversationID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}

	return nil
}
