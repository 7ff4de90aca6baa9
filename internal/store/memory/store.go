package memory

import (
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/store"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time check to ensure MemoryStore implements store.Store
var _ store.Store = (*MemoryStore)(nil)

// MemoryStore keeps users and conversations in process memory.
// Values are copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]models.User
	emails        map[string]uuid.UUID
	conversations map[uuid.UUID]models.Conversation
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uuid.UUID]models.User),
		emails:        make(map[string]uuid.UUID),
		conversations: make(map[uuid.UUID]models.Conversation),
		now:           time.Now,
	}
}

// SetClock overrides the time source. Used by tests that need distinct timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.emails[email]; exists {
		return store.ErrConflict
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	s.emails[email] = user.ID
	return nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) ListConversationsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0)
	for _, c := range s.conversations {
		if c.OwnerID == ownerID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	return s.CreateConversationWithMessages(ctx, arg, nil)
}

func (s *MemoryStore) CreateConversationWithMessages(ctx context.Context, arg store.CreateConversationParams, messages []models.Message) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := s.now()
	c := models.Conversation{
		ID:        id,
		OwnerID:   arg.OwnerID,
		Title:     arg.Title,
		Messages:  make([]models.Message, 0, len(messages)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range messages {
		c.Messages = append(c.Messages, stamp(m, now))
	}
	s.conversations[id] = c
	out := c.Clone()
	return &out, nil
}

func (s *MemoryStore) GetConversationByID(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok || c.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (s *MemoryStore) AppendMessages(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, messages []models.Message) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok || c.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	now := s.now()
	// Build a new slice so clones handed out earlier never observe the append.
	msgs := make([]models.Message, 0, len(c.Messages)+len(messages))
	msgs = append(msgs, c.Messages...)
	for _, m := range messages {
		msgs = append(msgs, stamp(m, now))
	}
	c.Messages = msgs
	c.UpdatedAt = now
	s.conversations[id] = c
	out := c.Clone()
	return &out, nil
}

func (s *MemoryStore) DeleteConversation(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok || c.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

func stamp(m models.Message, now time.Time) models.Message {
	m = m.Clone()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return m
}
