package postgres

import (
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/store"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, owner_id, title, messages, created_at, updated_at`

const listConversationsByOwner = `
SELECT ` + conversationColumns + `
FROM conversations
WHERE owner_id = $1
ORDER BY updated_at DESC, id DESC`

func (s *PostgresStore) ListConversationsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx, listConversationsByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	items := make([]models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return items, nil
}

const createConversation = `
INSERT INTO conversations (id, owner_id, title, messages)
VALUES ($1, $2, $3, $4::jsonb)
RETURNING ` + conversationColumns

func (s *PostgresStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	return s.CreateConversationWithMessages(ctx, arg, nil)
}

// CreateConversationWithMessages inserts the conversation row with its first messages in a single statement.
func (s *PostgresStore) CreateConversationWithMessages(ctx context.Context, arg store.CreateConversationParams, messages []models.Message) (*models.Conversation, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	payload, err := marshalMessages(messages, time.Now())
	if err != nil {
		return nil, err
	}

	c, err := scanConversation(s.db.QueryRow(ctx, createConversation, id, arg.OwnerID, arg.Title, payload))
	if err != nil {
		s.log.Error().Err(err).Str("owner_id", arg.OwnerID.String()).Msg("failed to insert conversation")
		return nil, fmt.Errorf("database error creating conversation: %w", err)
	}
	return c, nil
}

const getConversationByID = `
SELECT ` + conversationColumns + `
FROM conversations
WHERE id = $1 AND owner_id = $2`

func (s *PostgresStore) GetConversationByID(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRow(ctx, getConversationByID, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning conversation: %w", err)
	}
	return c, nil
}

// appendMessages pushes onto the JSONB array and bumps the timestamp in one statement,
// so concurrent appends to the same conversation serialise on the row lock.
const appendMessages = `
UPDATE conversations
SET messages = messages || $1::jsonb, updated_at = NOW()
WHERE id = $2 AND owner_id = $3
RETURNING ` + conversationColumns

func (s *PostgresStore) AppendMessages(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, messages []models.Message) (*models.Conversation, error) {
	payload, err := marshalMessages(messages, time.Now())
	if err != nil {
		return nil, err
	}

	c, err := scanConversation(s.db.QueryRow(ctx, appendMessages, payload, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.log.Error().Err(err).Str("conversation_id", id.String()).Msg("failed to append messages")
		return nil, fmt.Errorf("database error appending messages: %w", err)
	}
	return c, nil
}

const deleteConversation = `
DELETE FROM conversations
WHERE id = $1 AND owner_id = $2`

func (s *PostgresStore) DeleteConversation(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteConversation, id, ownerID)
	if err != nil {
		return fmt.Errorf("error executing delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Could be due to wrong ID or OwnerID not matching
		return store.ErrNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var (
		c   models.Conversation
		raw []byte
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &raw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Messages = make([]models.Message, 0)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Messages); err != nil {
			return nil, fmt.Errorf("failed to parse messages: %w", err)
		}
	}
	return &c, nil
}

func marshalMessages(messages []models.Message, now time.Time) ([]byte, error) {
	out := make([]models.Message, len(messages))
	for i, m := range messages {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		out[i] = m
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	return payload, nil
}
