package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/attachments"
	"adgpt-backend/pkg/httputil"
)

// AttachmentReader opens stored attachments by key.
type AttachmentReader interface {
	Open(ctx context.Context, key string) (*attachments.Object, error)
}

type UploadHandlers struct {
	attachments AttachmentReader
	log         zerolog.Logger
}

func NewUploadHandlers(r AttachmentReader, log zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{
		attachments: r,
		log:         log.With().Str("component", "upload-handler").Logger(),
	}
}

// HandleGet handles GET /uploads/{key}.
func (h *UploadHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	obj, err := h.attachments.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, attachments.ErrInvalidKey) || errors.Is(err, attachments.ErrObjectNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "File not found")
			return
		}
		h.log.Error().Err(err).Str("key", key).Msg("failed to open attachment")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("failed to stream attachment")
	}
}
