package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/auth"
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/services"
	"adgpt-backend/pkg/httputil"
)

// ConversationService defines the directory operations used by the handlers.
type ConversationService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error)
	Create(ctx context.Context, ownerID uuid.UUID, title *string) (*models.Conversation, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Conversation, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// ConversationHandlers handles HTTP requests related to conversations.
type ConversationHandlers struct {
	conversations ConversationService
	log           zerolog.Logger
}

func NewConversationHandlers(svc ConversationService, log zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{
		conversations: svc,
		log:           log.With().Str("component", "conversation-handler").Logger(),
	}
}

// HandleList handles GET /api/conversations.
func (h *ConversationHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	convs, err := h.conversations.List(r.Context(), ownerID)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	resp := make([]models.ConversationResponse, 0, len(convs))
	for i := range convs {
		resp = append(resp, models.NewConversationResponse(&convs[i]))
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleCreate handles POST /api/conversations. The body is optional.
func (h *ConversationHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	conv, err := h.conversations.Create(r.Context(), ownerID, req.Title)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.NewConversationResponse(conv))
}

// HandleGet handles GET /api/conversations/{conversationID}.
func (h *ConversationHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		respondServiceError(w, h.log, services.ErrNotFound)
		return
	}

	conv, err := h.conversations.Get(r.Context(), ownerID, id)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.NewConversationResponse(conv))
}

// HandleDelete handles DELETE /api/conversations/{conversationID}.
func (h *ConversationHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		respondServiceError(w, h.log, services.ErrNotFound)
		return
	}

	if err := h.conversations.Delete(r.Context(), ownerID, id); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.MessageResponse{Message: "Conversation deleted"})
}
