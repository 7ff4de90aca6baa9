package store

import (
	"adgpt-backend/internal/models"
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist or is not owned by the caller.
// The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a unique constraint (e.g. user email) is violated.
var ErrConflict = errors.New("record already exists")

// CreateConversationParams contains parameters for creating a conversation.
type CreateConversationParams struct {
	ID      uuid.UUID // Generated by the store when uuid.Nil
	OwnerID uuid.UUID
	Title   string
}

// Store defines the interface for database operations.
// Every conversation operation is scoped by owner id in addition to conversation id.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Conversation operations
	ListConversationsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, arg CreateConversationParams) (*models.Conversation, error)
	// CreateConversationWithMessages creates a conversation already holding messages, in one atomic step.
	CreateConversationWithMessages(ctx context.Context, arg CreateConversationParams, messages []models.Message) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Conversation, error)
	// AppendMessages atomically appends messages and bumps updated_at.
	AppendMessages(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, messages []models.Message) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
}
