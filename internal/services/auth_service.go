package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/auth"
	"adgpt-backend/internal/config"
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/store"
)

// Custom errors for auth service
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
	ErrValidation         = errors.New("input validation failed")
)

const minPasswordLength = 6

type AuthService struct {
	store   store.Store
	revoker auth.Revoker
	cfg     *config.Config
	log     zerolog.Logger
}

func NewAuthService(s store.Store, revoker auth.Revoker, cfg *config.Config, log zerolog.Logger) *AuthService {
	return &AuthService{
		store:   s,
		revoker: revoker,
		cfg:     cfg,
		log:     log.With().Str("component", "auth-service").Logger(),
	}
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.log.Error().Err(err).Str("email", email).Msg("error checking user existence")
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("error hashing password")
		return nil, ErrHashingPassword
	}

	user := &models.User{
		ID:             uuid.New(),
		Name:           name,
		Email:          email,
		HashedPassword: hashedPassword,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		s.log.Error().Err(err).Str("email", email).Msg("error creating user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return user, nil
}

// Login verifies user credentials and returns a signed access token, its claims and the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *auth.CustomClaims, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, nil, ErrInvalidCredentials
		}
		s.log.Error().Err(err).Str("email", email).Msg("error retrieving user during login")
		return "", nil, nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	ok, err := auth.CheckPasswordHash(password, user.HashedPassword)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("error comparing password hash")
		return "", nil, nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return "", nil, nil, ErrInvalidCredentials
	}

	token, claims, err := auth.NewAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.TokenExpiration())
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("error generating JWT")
		return "", nil, nil, ErrCreatingToken
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return token, claims, user, nil
}

// Authenticate validates a raw token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.CustomClaims, error) {
	claims, err := auth.ParseToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}
	return claims, nil
}

// Logout revokes the token identified by claims until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *auth.CustomClaims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	until := time.Now().Add(s.cfg.TokenExpiration())
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.revoker.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.log.Info().Str("user_id", claims.UserID.String()).Msg("user logged out")
	return nil
}

// CurrentUser returns the account behind an authenticated owner id.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}
