package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"brightwell/internal/domain"
	model "brightwell/internal/domain/models/chat"
	"brightwell/internal/domain/repositories"
	"brightwell/internal/llm"
	"brightwell/internal/stream"
	"brightwell/internal/tools"
)

// memStore is an in-memory stand-in for the conversation and turn
// repositories, mirroring the repository contracts: duplicate turn ids are
// no-ops, missing conversations are ErrNotFound.
type memStore struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation
	turns map[string][]model.Turn

	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		convs: make(map[string]*model.Conversation),
		turns: make(map[string][]model.Turn),
	}
}

func (s *memStore) Create(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conv.ID]; ok {
		return &domain.ConflictError{Message: "conversation exists", ResourceID: conv.ID}
	}
	cp := *conv
	s.convs[conv.ID] = &cp
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *memStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Conversation
	for _, conv := range s.convs {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (s *memStore) UpdateVisibility(ctx context.Context, id, visibility string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return domain.ErrNotFound
	}
	conv.Visibility = visibility
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.convs, id)
	return nil
}

func (s *memStore) Append(ctx context.Context, turn *model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	if _, ok := s.convs[turn.ConversationID]; !ok {
		return domain.ErrNotFound
	}
	for _, existing := range s.turns[turn.ConversationID] {
		if existing.ID == turn.ID {
			return nil // idempotent
		}
	}
	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], *turn)
	return nil
}

func (s *memStore) ListByConversation(ctx context.Context, conversationID string) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Turn(nil), s.turns[conversationID]...), nil
}

func (s *memStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, conversationID)
	return nil
}

// passthroughTx runs the function without a real transaction.
type passthroughTx struct{}

func (passthroughTx) ExecTx(ctx context.Context, fn repositories.TxFn) error { return fn(ctx) }

// scriptedProvider returns fixed completions per round.
type scriptedProvider struct {
	mu          sync.Mutex
	completions []llm.Completion
	errs        []error
	calls       int
}

func (p *scriptedProvider) Stream(ctx context.Context, req llm.Request, emit func(llm.Fragment)) (*llm.Completion, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()

	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.completions) {
		return &llm.Completion{StopReason: "end_turn"}, nil
	}
	comp := p.completions[i]
	if comp.Text != "" {
		emit(llm.Fragment{Kind: llm.FragmentText, Text: comp.Text})
	}
	return &comp, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	return "Scripted Title", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, store *memStore, provider llm.Provider) *Service {
	t.Helper()
	catalog, err := llm.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	loop := llm.NewLoop(provider, tools.NewRegistry(), 5, testLogger())
	titles := NewTitleGenerator(nil, "", testLogger()) // truncation fallback only
	return NewService(store, store, passthroughTx{}, catalog, loop, titles, 0, testLogger())
}

func textRequest(id, text string) TurnRequest {
	return TurnRequest{
		ConversationID: id,
		Parts:          []model.Part{model.TextPart(text)},
	}
}

func runStream(t *testing.T, svc *Service, userID string, prepared *PreparedTurn) *stream.Reducer {
	t.Helper()
	var buf bytes.Buffer
	w := stream.NewWriterTo(&buf, nil)
	svc.Stream(context.Background(), userID, prepared, w)

	red := stream.NewReducer()
	if err := stream.Consume(&buf, red, nil); err != nil {
		t.Fatalf("consume stream: %v", err)
	}
	return red
}

func TestService_PrepareCreatesConversation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &scriptedProvider{})
	ctx := context.Background()

	id := uuid.New().String()
	prepared, err := svc.Prepare(ctx, "user-1", textRequest(id, "How do I volunteer with Brightwell?"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.Conversation.UserID != "user-1" {
		t.Errorf("owner = %q", prepared.Conversation.UserID)
	}
	if prepared.Conversation.Title != "How do I volunteer with Brightwell?" {
		t.Errorf("title = %q", prepared.Conversation.Title)
	}
	if prepared.Conversation.Visibility != model.VisibilityPrivate {
		t.Errorf("new conversations must be private, got %q", prepared.Conversation.Visibility)
	}

	// The user turn is durable before any streaming happens.
	turns, _ := store.ListByConversation(ctx, id)
	if len(turns) != 1 || turns[0].Role != model.RoleUser {
		t.Fatalf("stored turns = %+v", turns)
	}
}

func TestService_PrepareExistingConversation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &scriptedProvider{})
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := svc.Prepare(ctx, "user-1", textRequest(id, "first")); err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	prepared, err := svc.Prepare(ctx, "user-1", textRequest(id, "second"))
	if err != nil {
		t.Fatalf("second Prepare: %v", err)
	}

	if prepared.Conversation.Title != "first" {
		t.Errorf("title changed on follow-up turn: %q", prepared.Conversation.Title)
	}
	if len(prepared.History) != 2 {
		t.Errorf("history length = %d, want 2", len(prepared.History))
	}
}

func TestService_PrepareRejections(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &scriptedProvider{})
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := svc.Prepare(ctx, "owner", textRequest(id, "mine")); err != nil {
		t.Fatalf("setup Prepare: %v", err)
	}

	t.Run("other user's conversation", func(t *testing.T) {
		_, err := svc.Prepare(ctx, "intruder", textRequest(id, "yours now"))
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("missing parts", func(t *testing.T) {
		_, err := svc.Prepare(ctx, "owner", TurnRequest{ConversationID: uuid.New().String()})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("non-uuid id", func(t *testing.T) {
		_, err := svc.Prepare(ctx, "owner", textRequest("not-a-uuid", "hi"))
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("tool parts not accepted inbound", func(t *testing.T) {
		_, err := svc.Prepare(ctx, "owner", TurnRequest{
			ConversationID: uuid.New().String(),
			Parts:          []model.Part{model.ToolCallPart("c1", "web_search", nil)},
		})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})
}

func TestService_StreamHappyPath(t *testing.T) {
	store := newMemStore()
	provider := &scriptedProvider{completions: []llm.Completion{
		{Text: "We would love your help.", StopReason: "end_turn"},
	}}
	svc := newTestService(t, store, provider)
	ctx := context.Background()

	id := uuid.New().String()
	prepared, err := svc.Prepare(ctx, "user-1", textRequest(id, "Can I volunteer?"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	red := runStream(t, svc, "user-1", prepared)

	if red.FinishReason != llm.FinishStop {
		t.Errorf("finish reason = %q", red.FinishReason)
	}
	if red.TurnID == "" {
		t.Fatal("finish event missing turn id")
	}
	if len(red.Parts) != 1 || red.Parts[0].Text != "We would love your help." {
		t.Errorf("streamed parts = %+v", red.Parts)
	}

	turns, _ := store.ListByConversation(ctx, id)
	if len(turns) != 2 {
		t.Fatalf("stored turns = %d, want user + assistant", len(turns))
	}
	assistant := turns[1]
	if assistant.Role != model.RoleAssistant || assistant.ID != red.TurnID {
		t.Errorf("assistant turn = %+v, stream turn id %q", assistant, red.TurnID)
	}
}

func TestService_AssistantTurnIDDeterministic(t *testing.T) {
	store := newMemStore()
	provider := &scriptedProvider{completions: []llm.Completion{
		{Text: "first attempt", StopReason: "end_turn"},
		{Text: "second attempt", StopReason: "end_turn"},
	}}
	svc := newTestService(t, store, provider)
	ctx := context.Background()

	id := uuid.New().String()
	prepared, err := svc.Prepare(ctx, "user-1", textRequest(id, "hello"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	first := runStream(t, svc, "user-1", prepared)
	second := runStream(t, svc, "user-1", prepared)

	if first.TurnID != second.TurnID {
		t.Errorf("retried turn got a different id: %q vs %q", first.TurnID, second.TurnID)
	}

	// The duplicate append is a no-op, so only one assistant turn exists.
	turns, _ := store.ListByConversation(ctx, id)
	assistants := 0
	for _, turn := range turns {
		if turn.Role == model.RoleAssistant {
			assistants++
		}
	}
	if assistants != 1 {
		t.Errorf("assistant turns stored = %d, want 1", assistants)
	}
}

func TestService_StreamProviderFailure(t *testing.T) {
	store := newMemStore()
	provider := &scriptedProvider{errs: []error{errors.New("model unavailable")}}
	svc := newTestService(t, store, provider)
	ctx := context.Background()

	id := uuid.New().String()
	prepared, err := svc.Prepare(ctx, "user-1", textRequest(id, "hello"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	red := runStream(t, svc, "user-1", prepared)

	if red.Err == "" {
		t.Error("expected in-band error event")
	}
	if red.FinishReason != "error" {
		t.Errorf("finish reason = %q, want error", red.FinishReason)
	}

	// The user turn survives the failed assistant turn.
	turns, _ := store.ListByConversation(ctx, id)
	if len(turns) != 1 || turns[0].Role != model.RoleUser {
		t.Errorf("stored turns = %+v", turns)
	}
}

func TestService_StreamTimeout(t *testing.T) {
	store := newMemStore()
	provider := &scriptedProvider{errs: []error{context.DeadlineExceeded}}
	svc := newTestService(t, store, provider)
	ctx := context.Background()

	id := uuid.New().String()
	prepared, err := svc.Prepare(ctx, "user-1", textRequest(id, "hello"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	red := runStream(t, svc, "user-1", prepared)

	if red.FinishReason != llm.FinishTimeout {
		t.Errorf("finish reason = %q, want timeout", red.FinishReason)
	}
	if red.Err == "" {
		t.Error("timeout must be reported as an in-band error before the finish")
	}
}

func TestService_PersistFailureStillFinishes(t *testing.T) {
	store := newMemStore()
	provider := &scriptedProvider{completions: []llm.Completion{
		{Text: "answer", StopReason: "end_turn"},
	}}
	svc := newTestService(t, store, provider)
	ctx := context.Background()

	id := uuid.New().String()
	prepared, err := svc.Prepare(ctx, "user-1", textRequest(id, "hello"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	store.appendErr = errors.New("db gone")
	red := runStream(t, svc, "user-1", prepared)

	if red.FinishReason != llm.FinishStop {
		t.Errorf("finish reason = %q; persistence failure must not kill the stream", red.FinishReason)
	}
	if red.Err != "" {
		t.Errorf("unexpected error event: %q", red.Err)
	}
}

func TestService_GetConversationVisibility(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &scriptedProvider{})
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := svc.Prepare(ctx, "owner", textRequest(id, "hi")); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	t.Run("private hidden from others", func(t *testing.T) {
		_, _, err := svc.GetConversation(ctx, "stranger", id)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("owner reads private", func(t *testing.T) {
		conv, turns, err := svc.GetConversation(ctx, "owner", id)
		if err != nil {
			t.Fatalf("GetConversation: %v", err)
		}
		if conv.ID != id || len(turns) != 1 {
			t.Errorf("conv = %+v, turns = %d", conv, len(turns))
		}
	})

	t.Run("public readable by others", func(t *testing.T) {
		if err := svc.SetVisibility(ctx, "owner", id, model.VisibilityPublic); err != nil {
			t.Fatalf("SetVisibility: %v", err)
		}
		if _, _, err := svc.GetConversation(ctx, "stranger", id); err != nil {
			t.Errorf("public conversation unreadable: %v", err)
		}
	})
}

func TestService_SetVisibility(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &scriptedProvider{})
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := svc.Prepare(ctx, "owner", textRequest(id, "hi")); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if err := svc.SetVisibility(ctx, "stranger", id, model.VisibilityPublic); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-owner err = %v, want ErrUnauthorized", err)
	}
	if err := svc.SetVisibility(ctx, "owner", id, "secret"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad value err = %v, want ErrValidation", err)
	}
}

func TestService_Delete(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, &scriptedProvider{})
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := svc.Prepare(ctx, "owner", textRequest(id, "hi")); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if err := svc.Delete(ctx, "stranger", id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-owner err = %v, want ErrUnauthorized", err)
	}
	if err := svc.Delete(ctx, "owner", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "owner", id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	turns, _ := store.ListByConversation(ctx, id)
	if len(turns) != 0 {
		t.Errorf("turns survived deletion: %d", len(turns))
	}
}

func TestTitleGenerator_Fallback(t *testing.T) {
	g := NewTitleGenerator(nil, "", testLogger())

	if title := g.Generate(context.Background(), "short question"); title != "short question" {
		t.Errorf("title = %q", title)
	}

	long := make([]byte, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'x')
	}
	if title := g.Generate(context.Background(), string(long)); len([]rune(title)) > 80 {
		t.Errorf("title not truncated: %d runes", len([]rune(title)))
	}

	if title := g.Generate(context.Background(), "  "); title != "New conversation" {
		t.Errorf("empty message title = %q", title)
	}
}

func TestHistoryMessages_FlattensTranscript(t *testing.T) {
	turns := []model.Turn{
		{Role: model.RoleUser, Parts: []model.Part{model.TextPart("question")}},
		{Role: model.RoleAssistant, Parts: []model.Part{
			model.ReasoningPart("hmm"),
			model.TextPart("answer"),
			model.ToolCallPart("c1", "web_search", nil),
			model.ToolResultPart("c1", "web_search", map[string]any{"success": true}),
		}},
		{Role: model.RoleSystem, Parts: []model.Part{model.TextPart("ignored")}},
	}

	messages := historyMessages(turns)
	if len(messages) != 2 {
		t.Fatalf("messages = %+v", messages)
	}
	if messages[1].Text != "answer" {
		t.Errorf("assistant text = %q; reasoning and tool parts must not leak", messages[1].Text)
	}

	var asJSON bytes.Buffer
	if err := json.NewEncoder(&asJSON).Encode(messages); err != nil {
		t.Fatalf("messages not encodable: %v", err)
	}
}
