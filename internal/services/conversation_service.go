package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/models"
	"adgpt-backend/internal/store"
)

// ConversationService exposes the per-owner conversation directory.
type ConversationService struct {
	store store.Store
	log   zerolog.Logger
}

func NewConversationService(s store.Store, log zerolog.Logger) *ConversationService {
	return &ConversationService{
		store: s,
		log:   log.With().Str("component", "conversation-service").Logger(),
	}
}

// List returns the owner's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	convs, err := s.store.ListConversationsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// Create makes an empty conversation. A nil or blank title becomes the default title.
func (s *ConversationService) Create(ctx context.Context, ownerID uuid.UUID, title *string) (*models.Conversation, error) {
	t := models.DefaultConversationTitle
	if title != nil && strings.TrimSpace(*title) != "" {
		t = strings.TrimSpace(*title)
	}
	conv, err := s.store.CreateConversation(ctx, store.CreateConversationParams{OwnerID: ownerID, Title: t})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.log.Info().Str("owner_id", ownerID.String()).Str("conversation_id", conv.ID.String()).Msg("conversation created")
	return conv, nil
}

func (s *ConversationService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.GetConversationByID(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *ConversationService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.store.DeleteConversation(ctx, id, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	s.log.Info().Str("owner_id", ownerID.String()).Str("conversation_id", id.String()).Msg("conversation deleted")
	return nil
}
