package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/attachments"
	"adgpt-backend/internal/auth"
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/services"
	"adgpt-backend/pkg/httputil"
)

// multipartOverhead is allowed on top of the attachment limit for form fields and boundaries.
const multipartOverhead = 1 << 20

// IngestionService runs the send-message flow.
type IngestionService interface {
	SendMessage(ctx context.Context, ownerID uuid.UUID, in services.SendMessageInput) (*services.SendMessageResult, error)
}

type MessageHandlers struct {
	ingestion      IngestionService
	maxUploadBytes int64
	log            zerolog.Logger
}

func NewMessageHandlers(svc IngestionService, maxUploadBytes int64, log zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		ingestion:      svc,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "message-handler").Logger(),
	}
}

// HandleSendMessage handles POST /api/send-message with form fields conversationId, message and file.
func (h *MessageHandlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}

	in, err := h.parseSendMessage(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid send-message form")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(w, http.StatusBadRequest, "File too large")
			return
		}
		httputil.RespondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	res, err := h.ingestion.SendMessage(r.Context(), ownerID, in)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) && errors.Is(err, attachments.ErrTooLarge) {
			httputil.RespondError(w, http.StatusBadRequest, "File too large")
			return
		}
		if errors.Is(err, services.ErrInvalidRequest) {
			httputil.RespondError(w, http.StatusBadRequest, "Message or file required")
			return
		}
		respondServiceError(w, h.log, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.SendMessageResponse{
		Reply:          res.Reply,
		ConversationID: res.ConversationID,
		FileURL:        res.FileRef,
	})
}

func (h *MessageHandlers) parseSendMessage(r *http.Request) (services.SendMessageInput, error) {
	var in services.SendMessageInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUploadBytes + multipartOverhead); err != nil {
			return in, err
		}
	} else if err := r.ParseForm(); err != nil {
		return in, err
	}

	in.ConversationID = strings.TrimSpace(r.FormValue("conversationId"))
	in.Text = r.FormValue("message")

	if r.MultipartForm == nil {
		return in, nil
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return in, err
	}
	in.Attachment = &attachments.Attachment{Filename: header.Filename, Data: data}
	return in, nil
}
