package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"adgpt-backend/internal/services"
	"adgpt-backend/pkg/httputil"
)

// respondServiceError maps service errors to HTTP status codes.
// Messages never say whether a resource exists for another owner.
func respondServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrInvalidCredentials):
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, services.ErrUserAlreadyExists):
		httputil.RespondError(w, http.StatusConflict, services.ErrUserAlreadyExists.Error())
	case errors.Is(err, services.ErrStorage):
		log.Error().Err(err).Msg("attachment storage failed")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to store attachment")
	case errors.Is(err, services.ErrUpstream):
		log.Error().Err(err).Msg("upstream completion failed")
		httputil.RespondError(w, http.StatusBadGateway, "Failed to get response")
	default:
		log.Error().Err(err).Msg("internal error")
		httputil.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
