// Package chat orchestrates assistant turns: it prepares the conversation
// state, runs the model-tool loop, multiplexes its output onto the stream,
// and persists the results.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"brightwell/internal/domain"
	model "brightwell/internal/domain/models/chat"
	"brightwell/internal/domain/repositories"
	"brightwell/internal/llm"
	"brightwell/internal/stream"
)

// turnNamespace seeds the deterministic assistant turn ids. An assistant
// turn's id is a function of (conversation, user turn), so a retried turn
// resolves to the same id and the append stays idempotent.
var turnNamespace = uuid.MustParse("5f2b76d1-9c44-4e8a-b3a0-47d6a1f0c9e2")

const historyListLimit = 100

// Service runs assistant turns and owns conversation lifecycle operations.
type Service struct {
	conversations repositories.ConversationRepository
	turns         repositories.TurnRepository
	txm           repositories.TransactionManager
	catalog       *llm.Catalog
	loop          *llm.Loop
	titles        *TitleGenerator
	turnTimeout   time.Duration
	logger        *slog.Logger
}

// NewService creates the turn orchestrator.
func NewService(
	conversations repositories.ConversationRepository,
	turns repositories.TurnRepository,
	txm repositories.TransactionManager,
	catalog *llm.Catalog,
	loop *llm.Loop,
	titles *TitleGenerator,
	turnTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	if turnTimeout <= 0 {
		turnTimeout = 60 * time.Second
	}
	return &Service{
		conversations: conversations,
		turns:         turns,
		txm:           txm,
		catalog:       catalog,
		loop:          loop,
		titles:        titles,
		turnTimeout:   turnTimeout,
		logger:        logger,
	}
}

// TurnRequest is the parsed body of a turn submission.
type TurnRequest struct {
	ConversationID string
	Mode           string
	Parts          []model.Part
	Attachments    []model.Attachment
}

// PreparedTurn is everything Prepare resolved before the stream opens.
type PreparedTurn struct {
	Conversation *model.Conversation
	UserTurn     *model.Turn
	History      []model.Turn
	Mode         llm.Mode
}

// Prepare resolves the conversation, persists the user turn, and loads the
// transcript. It runs before the response streams, so every failure here
// still maps to a proper HTTP status. The user turn is durable once Prepare
// returns, whatever happens to the assistant turn afterwards.
func (s *Service) Prepare(ctx context.Context, userID string, req TurnRequest) (*PreparedTurn, error) {
	if err := validateTurnRequest(req); err != nil {
		return nil, err
	}

	mode := s.catalog.Resolve(req.Mode)

	conv, err := s.conversations.Get(ctx, req.ConversationID)
	switch {
	case err == nil:
		if conv.UserID != userID {
			return nil, domain.ErrUnauthorized
		}
	case errors.Is(err, domain.ErrNotFound):
		conv = &model.Conversation{
			ID:         req.ConversationID,
			UserID:     userID,
			Title:      s.titles.Generate(ctx, firstText(req.Parts)),
			Visibility: model.VisibilityPrivate,
			CreatedAt:  time.Now().UTC(),
		}
	default:
		return nil, err
	}

	userTurn := &model.Turn{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Parts:          req.Parts,
		Attachments:    req.Attachments,
		CreatedAt:      time.Now().UTC(),
	}

	created := errors.Is(err, domain.ErrNotFound)
	if txErr := s.txm.ExecTx(ctx, func(ctx context.Context) error {
		if created {
			if err := s.conversations.Create(ctx, conv); err != nil {
				return err
			}
		}
		return s.turns.Append(ctx, userTurn)
	}); txErr != nil {
		return nil, txErr
	}

	history, err := s.turns.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	return &PreparedTurn{
		Conversation: conv,
		UserTurn:     userTurn,
		History:      history,
		Mode:         mode,
	}, nil
}

// Stream runs the assistant turn for a prepared request and delivers it over
// w. The response is already streaming: failures from here on are reported
// in-band, and exactly one finish event terminates the stream.
func (s *Service) Stream(ctx context.Context, userID string, prepared *PreparedTurn, w *stream.Writer) {
	convID := prepared.Conversation.ID
	turnID := uuid.NewSHA1(turnNamespace, []byte(convID+"/"+prepared.UserTurn.ID)).String()

	tctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	result, err := s.loop.Run(tctx, llm.TurnInput{
		Mode:     prepared.Mode,
		System:   systemPrompt(prepared.Mode),
		Messages: historyMessages(prepared.History),
		UserID:   userID,
	}, &writerSink{w: w})

	if err != nil {
		s.logger.ErrorContext(ctx, "turn failed",
			slog.String("chat_id", convID), slog.Any("error", err))
		_ = w.Send(stream.KindError, stream.ErrorEvent{Message: "the assistant failed to respond"})
		_ = w.Send(stream.KindFinish, stream.FinishEvent{Reason: "error", ConversationID: convID})
		return
	}

	if result.FinishReason == llm.FinishTimeout {
		_ = w.Send(stream.KindError, stream.ErrorEvent{Message: "the assistant ran out of time"})
	}

	if len(result.Parts) > 0 {
		s.persistAssistantTurn(ctx, convID, turnID, result.Parts)
	}

	_ = w.Send(stream.KindFinish, stream.FinishEvent{
		Reason:         result.FinishReason,
		ConversationID: convID,
		TurnID:         turnID,
	})
}

// persistAssistantTurn writes the assistant turn best-effort. It runs on a
// detached context so a client that disconnected mid-stream does not cost us
// the turn; a persistence failure costs only this turn, never the stream.
func (s *Service) persistAssistantTurn(ctx context.Context, convID, turnID string, parts []model.Part) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := s.turns.Append(pctx, &model.Turn{
		ID:             turnID,
		ConversationID: convID,
		Role:           model.RoleAssistant,
		Parts:          parts,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "assistant turn not persisted",
			slog.String("chat_id", convID), slog.String("turn_id", turnID), slog.Any("error", err))
	}
}

// GetConversation returns a conversation and its transcript. Non-owners can
// read public conversations; private ones stay indistinguishable from absent.
func (s *Service) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, []model.Turn, error) {
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if conv.UserID != userID && conv.Visibility != model.VisibilityPublic {
		return nil, nil, domain.ErrNotFound
	}

	turns, err := s.turns.ListByConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, turns, nil
}

// ListHistory returns the caller's conversations, most recent first.
func (s *Service) ListHistory(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID, historyListLimit)
}

// SetVisibility switches a conversation between private and public.
func (s *Service) SetVisibility(ctx context.Context, userID, id, visibility string) error {
	if visibility != model.VisibilityPrivate && visibility != model.VisibilityPublic {
		return fmt.Errorf("%w: visibility must be private or public", domain.ErrValidation)
	}

	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return err
	}
	if conv.UserID != userID {
		return domain.ErrUnauthorized
	}
	return s.conversations.UpdateVisibility(ctx, id, visibility)
}

// Delete removes a conversation and its turns. Owner only.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return err
	}
	if conv.UserID != userID {
		return domain.ErrUnauthorized
	}

	return s.txm.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.turns.DeleteByConversation(ctx, id); err != nil {
			return err
		}
		return s.conversations.Delete(ctx, id)
	})
}

func validateTurnRequest(req TurnRequest) error {
	if req.ConversationID == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if _, err := uuid.Parse(req.ConversationID); err != nil {
		return fmt.Errorf("%w: id must be a UUID", domain.ErrValidation)
	}
	if len(req.Parts) == 0 {
		return fmt.Errorf("%w: message requires at least one part", domain.ErrValidation)
	}
	for _, p := range req.Parts {
		if p.Type != model.PartText && p.Type != model.PartFile {
			return fmt.Errorf("%w: inbound parts must be text or file", domain.ErrValidation)
		}
		if err := model.ValidatePart(p); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrValidation, err)
		}
	}
	return nil
}

// historyMessages flattens the stored transcript into model input. Reasoning
// traces and tool interactions of past turns stay out of the context window;
// only visible text goes back to the model.
func historyMessages(turns []model.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		if turn.Role != model.RoleUser && turn.Role != model.RoleAssistant {
			continue
		}
		text := turn.TextContent()
		if text == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: turn.Role, Text: text})
	}
	return messages
}

func firstText(parts []model.Part) string {
	for _, p := range parts {
		if p.Type == model.PartText && p.Text != "" {
			return p.Text
		}
	}
	return ""
}
