package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Auth DTOs ---

// RegisterRequest defines the expected body for the register endpoint.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse defines the user information returned by the API.
// Never includes the password hash.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// AuthResponse defines the response body for a successful login.
type AuthResponse struct {
	Message     string       `json:"message"`
	AccessToken string       `json:"access_token,omitempty"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewUserResponse maps a stored user to its API representation.
func NewUserResponse(u *User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

// --- Conversation DTOs ---

// CreateConversationRequest defines the body for creating a conversation.
type CreateConversationRequest struct {
	Title *string `json:"title,omitempty"`
}

// ConversationResponse is the API representation of a conversation with its full history.
type ConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewConversationResponse maps a stored conversation to its API representation.
func NewConversationResponse(c *Conversation) ConversationResponse {
	msgs := c.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return ConversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  msgs,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// SendMessageResponse is returned by the send-message endpoint.
type SendMessageResponse struct {
	Reply          string    `json:"reply"`
	ConversationID uuid.UUID `json:"conversationId"`
	FileURL        *string   `json:"fileUrl"`
}
