package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/attachments"
	"adgpt-backend/internal/metrics"
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/reply"
	"adgpt-backend/internal/store"
)

// AttachmentStore persists uploaded files and hands back a public reference.
type AttachmentStore interface {
	Store(ctx context.Context, ownerID uuid.UUID, a attachments.Attachment) (*attachments.Stored, error)
	Remove(ctx context.Context, ref string) error
}

// ReplyGenerator produces the assistant reply for a user message.
type ReplyGenerator interface {
	Generate(ctx context.Context, in reply.Input) (string, error)
}

// SendMessageInput is one user turn as received from the transport layer.
type SendMessageInput struct {
	ConversationID string // Optional. Unknown, foreign or malformed ids start a new conversation.
	Text           string
	Attachment     *attachments.Attachment
}

// SendMessageResult is returned after the user/assistant pair has been persisted.
type SendMessageResult struct {
	Reply          string
	ConversationID uuid.UUID
	FileRef        *string
}

// IngestionService runs the send-message flow: store the attachment, generate a reply,
// and persist the user and assistant messages together.
type IngestionService struct {
	store       store.Store
	attachments AttachmentStore
	replies     ReplyGenerator
	log         zerolog.Logger
}

func NewIngestionService(s store.Store, a AttachmentStore, r ReplyGenerator, log zerolog.Logger) *IngestionService {
	return &IngestionService{
		store:       s,
		attachments: a,
		replies:     r,
		log:         log.With().Str("component", "ingestion-service").Logger(),
	}
}

func (s *IngestionService) SendMessage(ctx context.Context, ownerID uuid.UUID, in SendMessageInput) (*SendMessageResult, error) {
	hasAttachment := in.Attachment != nil
	if hasAttachment && len(in.Attachment.Data) == 0 {
		metrics.RecordSend("invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, attachments.ErrEmptyAttachment)
	}
	if strings.TrimSpace(in.Text) == "" && !hasAttachment {
		metrics.RecordSend("invalid")
		return nil, fmt.Errorf("%w: message or file required", ErrInvalidRequest)
	}

	log := s.log.With().Str("owner_id", ownerID.String()).Logger()

	var fileRef *string
	var attachmentName string
	if hasAttachment {
		stored, err := s.attachments.Store(ctx, ownerID, *in.Attachment)
		if err != nil {
			metrics.RecordUpload("error", 0)
			metrics.RecordSend("storage_error")
			log.Error().Err(err).Str("filename", in.Attachment.Filename).Msg("failed to store attachment")
			if errors.Is(err, attachments.ErrTooLarge) || errors.Is(err, attachments.ErrEmptyAttachment) {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		metrics.RecordUpload("success", stored.Size)
		fileRef = &stored.Ref
		attachmentName = in.Attachment.Filename
	}

	conv, err := s.resolveConversation(ctx, ownerID, in.ConversationID, log)
	if err != nil {
		metrics.RecordSend("store_error")
		s.discardAttachment(fileRef, log)
		return nil, err
	}

	replyText, err := s.replies.Generate(ctx, reply.Input{Text: in.Text, AttachmentName: attachmentName})
	if err != nil {
		metrics.RecordSend("upstream_error")
		log.Error().Err(err).Msg("failed to generate reply")
		s.discardAttachment(fileRef, log)
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	pair := []models.Message{
		{Role: models.RoleUser, Text: in.Text, File: fileRef},
		{Role: models.RoleAssistant, Text: replyText},
	}

	var saved *models.Conversation
	if conv != nil {
		saved, err = s.store.AppendMessages(ctx, conv.ID, ownerID, pair)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted while the reply was being generated.
			log.Warn().Str("conversation_id", conv.ID.String()).Msg("conversation vanished before append, starting a new one")
			conv = nil
		}
	}
	if conv == nil {
		saved, err = s.store.CreateConversationWithMessages(ctx, store.CreateConversationParams{
			OwnerID: ownerID,
			Title:   models.DefaultConversationTitle,
		}, pair)
	}
	if err != nil {
		metrics.RecordSend("store_error")
		log.Error().Err(err).Msg("failed to persist messages")
		return nil, fmt.Errorf("failed to persist messages: %w", err)
	}

	metrics.RecordSend("success")
	log.Info().Str("conversation_id", saved.ID.String()).Bool("attachment", fileRef != nil).Msg("message ingested")
	return &SendMessageResult{Reply: replyText, ConversationID: saved.ID, FileRef: fileRef}, nil
}

// resolveConversation returns a nil conversation when a new one must be created.
func (s *IngestionService) resolveConversation(ctx context.Context, ownerID uuid.UUID, rawID string, log zerolog.Logger) (*models.Conversation, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		log.Debug().Str("conversation_id", rawID).Msg("malformed conversation id, starting a new conversation")
		return nil, nil
	}
	conv, err := s.store.GetConversationByID(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		log.Error().Err(err).Str("conversation_id", rawID).Msg("conversation lookup failed")
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}
	return conv, nil
}

func (s *IngestionService) discardAttachment(ref *string, log zerolog.Logger) {
	if ref == nil {
		return
	}
	// The request context may already be done when the upstream timed out.
	if err := s.attachments.Remove(context.Background(), *ref); err != nil {
		log.Warn().Err(err).Str("file", *ref).Msg("failed to remove orphaned attachment")
	}
}
