package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/auth"
	"adgpt-backend/internal/models"
	"adgpt-backend/pkg/httputil"
)

// AuthService defines the interface expected from the auth service.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *auth.CustomClaims, *models.User, error)
	Authenticate(ctx context.Context, token string) (*auth.CustomClaims, error)
	Logout(ctx context.Context, claims *auth.CustomClaims) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type AuthHandler struct {
	authService  AuthService
	cookieSecure bool
	log          zerolog.Logger
}

func NewAuthHandler(authSvc AuthService, cookieSecure bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authSvc,
		cookieSecure: cookieSecure,
		log:          log.With().Str("component", "auth-handler").Logger(),
	}
}

// HandleRegister handles the POST /api/auth/register request.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.log.Warn().Err(err).Str("email", req.Email).Msg("register failed")
		respondServiceError(w, h.log, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, models.AuthResponse{
		Message: "User registered successfully",
		User:    models.NewUserResponse(user),
	})
}

// HandleLogin handles the POST /api/auth/login request.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, claims, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Warn().Err(err).Str("email", req.Email).Msg("login failed")
		respondServiceError(w, h.log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	httputil.RespondJSON(w, http.StatusOK, models.AuthResponse{
		Message:     "Login successful",
		AccessToken: token,
		User:        models.NewUserResponse(user),
	})
}

// HandleLogout revokes the presented token, if any is valid, and always clears the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if claims, err := h.authService.Authenticate(r.Context(), token); err == nil {
			if err := h.authService.Logout(r.Context(), claims); err != nil {
				h.log.Error().Err(err).Msg("failed to revoke token")
				httputil.RespondError(w, http.StatusInternalServerError, "Logout failed")
				return
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	httputil.RespondJSON(w, http.StatusOK, models.MessageResponse{Message: "Logged out successfully"})
}

// HandleMe returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.authService.CurrentUser(r.Context(), ownerID)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.NewUserResponse(user))
}
