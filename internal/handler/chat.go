package handler

import (
	"context"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	model "brightwell/internal/domain/models/chat"
	"brightwell/internal/httputil"
	chatsvc "brightwell/internal/service/chat"
	"brightwell/internal/stream"
)

// ChatHandler serves the conversation API.
type ChatHandler struct {
	service *chatsvc.Service
	logger  *slog.Logger
}

// NewChatHandler creates the conversation API handler.
func NewChatHandler(service *chatsvc.Service, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// turnMessage is one entry of the client-supplied transcript.
type turnMessage struct {
	Role        string             `json:"role"`
	Parts       []model.Part       `json:"parts"`
	Attachments []model.Attachment `json:"attachments"`
}

func (m turnMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Role, validation.Required,
			validation.In(model.RoleUser, model.RoleAssistant)),
		validation.Field(&m.Parts, validation.Required),
	)
}

type turnPayload struct {
	ID                string        `json:"id"`
	SelectedChatModel string        `json:"selectedChatModel"`
	Messages          []turnMessage `json:"messages"`
}

func (p turnPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required, is.UUID),
		validation.Field(&p.Messages, validation.Required),
	)
}

// SubmitTurn handles POST /api/chat: it persists the user turn and streams
// the assistant turn back as SSE. The body carries the client's view of the
// transcript; only its trailing message, which must be user-authored, is
// persisted - the stored history stays authoritative. Failures before the
// first byte map to HTTP statuses; once streaming starts, errors are in-band
// events.
func (h *ChatHandler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload turnPayload
	if err := httputil.ParseJSON(w, r, &payload); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := payload.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	trailing := payload.Messages[len(payload.Messages)-1]
	if trailing.Role != model.RoleUser {
		httputil.RespondError(w, http.StatusBadRequest, "the last message must be user-authored")
		return
	}

	prepared, err := h.service.Prepare(r.Context(), userID, chatsvc.TurnRequest{
		ConversationID: payload.ID,
		Mode:           payload.SelectedChatModel,
		Parts:          trailing.Parts,
		Attachments:    trailing.Attachments,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	// A write failure cancels this context, which aborts the turn.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writer, err := stream.NewWriter(w, cancel)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h.service.Stream(ctx, userID, prepared, writer)
}

// GetConversation handles GET /api/chat?id=: the conversation plus its
// transcript. Public conversations are readable by any authenticated user.
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}

	conv, turns, err := h.service.GetConversation(r.Context(), userID, id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"chat":  conv,
		"turns": turns,
	})
}

// DeleteConversation handles DELETE /api/chat?id=.
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondText(w, http.StatusOK, "deleted")
}

// History handles GET /api/history: the caller's conversations, newest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	chats, err := h.service.ListHistory(r.Context(), userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if chats == nil {
		chats = []model.Conversation{}
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

type visibilityPayload struct {
	ID         string `json:"id"`
	Visibility string `json:"visibility"`
}

func (p visibilityPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required, is.UUID),
		validation.Field(&p.Visibility, validation.Required,
			validation.In(model.VisibilityPrivate, model.VisibilityPublic)),
	)
}

// UpdateVisibility handles PATCH /api/chat/visibility.
func (h *ChatHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var payload visibilityPayload
	if err := httputil.ParseJSON(w, r, &payload); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := payload.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetVisibility(r.Context(), userID, payload.ID, payload.Visibility); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"id":         payload.ID,
		"visibility": payload.Visibility,
	})
}
