package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"brightwell/internal/domain"
	"brightwell/internal/domain/models/chat"
	"brightwell/internal/domain/repositories"
)

const saveTranslationSchema = `{
	"type": "object",
	"properties": {
		"parent_id": {
			"type": "string",
			"minLength": 1,
			"description": "ID of the content item being translated"
		},
		"locale": {
			"type": "string",
			"pattern": "^[a-z]{2}(-[A-Z]{2})?$",
			"description": "BCP 47 locale tag, e.g. sw or pt-BR"
		},
		"title": {
			"type": "string",
			"minLength": 1,
			"description": "Translated title"
		},
		"body": {
			"type": "string",
			"minLength": 1,
			"description": "Translated body text"
		},
		"overwrite": {
			"type": "boolean",
			"description": "Replace the existing translation for this locale instead of failing"
		}
	},
	"required": ["parent_id", "locale", "title", "body"],
	"additionalProperties": false
}`

// SaveTranslationTool persists a translated version of a content item.
// Duplicate (parent, locale) pairs and missing parents fold into failure
// results so the model can report them instead of the turn dying.
type SaveTranslationTool struct {
	repo   repositories.TranslationRepository
	logger *slog.Logger
}

// NewSaveTranslationTool creates a translation persistence tool.
func NewSaveTranslationTool(repo repositories.TranslationRepository, logger *slog.Logger) *SaveTranslationTool {
	return &SaveTranslationTool{
		repo:   repo,
		logger: logger.With(slog.String("tool", "save_translation")),
	}
}

func (t *SaveTranslationTool) Spec() Spec {
	return Spec{
		Name:        "save_translation",
		Description: "Save a translated version of a content item for a given locale. Fails if a translation for that locale already exists, unless overwrite is set.",
		InputSchema: json.RawMessage(saveTranslationSchema),
	}
}

func (t *SaveTranslationTool) Execute(ctx context.Context, inv *Invocation) Result {
	tr := &chat.Translation{
		ID:        uuid.New().String(),
		ParentID:  stringArg(inv.Args, "parent_id"),
		Locale:    stringArg(inv.Args, "locale"),
		Title:     stringArg(inv.Args, "title"),
		Body:      stringArg(inv.Args, "body"),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := t.repo.Save(ctx, tr); err != nil {
		var conflict *domain.ConflictError
		switch {
		case errors.As(err, &conflict):
			if boolArg(inv.Args, "overwrite") {
				return t.overwrite(ctx, tr, conflict.ResourceID)
			}
			return Fail("translation already exists",
				fmt.Sprintf("a %s translation for %s already exists (id %s)", tr.Locale, tr.ParentID, conflict.ResourceID))
		case errors.Is(err, domain.ErrNotFound):
			return Fail("parent content not found",
				fmt.Sprintf("no content item with id %s", tr.ParentID))
		default:
			t.logger.ErrorContext(ctx, "translation save failed", slog.Any("error", err))
			return Fail("failed to save translation", err.Error())
		}
	}

	return Ok(fmt.Sprintf("saved %s translation for %s", tr.Locale, tr.ParentID), map[string]any{
		"translation_id": tr.ID,
		"parent_id":      tr.ParentID,
		"locale":         tr.Locale,
	})
}

// overwrite replaces the body of the translation that caused the conflict.
func (t *SaveTranslationTool) overwrite(ctx context.Context, tr *chat.Translation, existingID string) Result {
	tr.ID = existingID
	if err := t.repo.Update(ctx, tr); err != nil {
		t.logger.ErrorContext(ctx, "translation update failed", slog.Any("error", err))
		return Fail("failed to update translation", err.Error())
	}

	return Ok(fmt.Sprintf("updated %s translation for %s", tr.Locale, tr.ParentID), map[string]any{
		"translation_id": tr.ID,
		"parent_id":      tr.ParentID,
		"locale":         tr.Locale,
		"updated":        true,
	})
}
