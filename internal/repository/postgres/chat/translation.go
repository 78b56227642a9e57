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

// TranslationRepository implements repositories.TranslationRepository on PostgreSQL.
type TranslationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewTranslationRepository creates a new TranslationRepository.
func NewTranslationRepository(config *postgres.RepositoryConfig) repositories.TranslationRepository {
	return &TranslationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Save inserts a new translation. A (parent_id, locale) unique index guards
// against duplicate locales per parent record.
func (r *TranslationRepository) Save(ctx context.Context, tr *chat.Translation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, locale, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, r.tables.Translations)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		tr.ID,
		tr.ParentID,
		tr.Locale,
		tr.Title,
		tr.Body,
		tr.CreatedAt,
		tr.UpdatedAt,
	).Scan(&tr.ID, &tr.CreatedAt, &tr.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			existing, getErr := r.GetByParentLocale(ctx, tr.ParentID, tr.Locale)
			if getErr != nil {
				return fmt.Errorf("translation for locale %s: %w", tr.Locale, domain.ErrConflict)
			}
			return &domain.ConflictError{
				Message:      fmt.Sprintf("translation for locale %s already exists", tr.Locale),
				ResourceType: "translation",
				ResourceID:   existing.ID,
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("parent record %s: %w", tr.ParentID, domain.ErrNotFound)
		}
		return fmt.Errorf("save translation: %w", err)
	}

	return nil
}

// Update rewrites a translation's title and body.
func (r *TranslationRepository) Update(ctx context.Context, tr *chat.Translation) error {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $2, body = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at
	`, r.tables.Translations)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, tr.ID, tr.Title, tr.Body, tr.UpdatedAt).Scan(&tr.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("translation %s: %w", tr.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update translation: %w", err)
	}

	return nil
}

// GetByParentLocale retrieves the translation for a parent/locale pair.
func (r *TranslationRepository) GetByParentLocale(ctx context.Context, parentID, locale string) (*chat.Translation, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, locale, title, body, created_at, updated_at
		FROM %s
		WHERE parent_id = $1 AND locale = $2
	`, r.tables.Translations)

	var tr chat.Translation
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, parentID, locale).Scan(
		&tr.ID,
		&tr.ParentID,
		&tr.Locale,
		&tr.Title,
		&tr.Body,
		&tr.CreatedAt,
		&tr.UpdatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("translation %s/%s: %w", parentID, locale, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get translation: %w", err)
	}

	return &tr, nil
}
