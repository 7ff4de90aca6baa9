package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultConversationTitle is the placeholder title given to conversations
// created without one, including those created implicitly by a first send.
const DefaultConversationTitle = "New Chat"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// User represents a registered account in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Message is a single turn in a conversation.
// Messages are embedded in the conversation row as a JSONB array.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	File      *string   `json:"file"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is an owner-scoped, append-only sequence of messages.
type Conversation struct {
	ID        uuid.UUID `db:"id"`
	OwnerID   uuid.UUID `db:"owner_id"`
	Title     string    `db:"title"`
	Messages  []Message `db:"messages"` // Never nil
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// Clone returns a copy of the message that shares no pointers with m.
func (m Message) Clone() Message {
	out := m
	if m.File != nil {
		f := *m.File
		out.File = &f
	}
	return out
}
