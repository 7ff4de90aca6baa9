package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/models"
)

var (
	ErrSendInFlight        = errors.New("a message is already being sent")
	ErrEmptyMessage        = errors.New("message or file required")
	ErrNothingToRetry      = errors.New("no failed message to retry")
	ErrUnknownConversation = errors.New("unknown conversation")
)

const tempKeyPrefix = "local-"

// Backend is the subset of the API the session drives.
type Backend interface {
	ListConversations(ctx context.Context) ([]models.ConversationResponse, error)
	CreateConversation(ctx context.Context, title *string) (*models.ConversationResponse, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	SendMessage(ctx context.Context, req SendRequest) (*models.SendMessageResponse, error)
}

// MessageState tracks a locally-sent user message through its round trip.
type MessageState string

const (
	StateSettled MessageState = ""
	StatePending MessageState = "pending"
	StateFailed  MessageState = "failed"
	StateRetried MessageState = "retried"
)

// LocalMessage is a message in the local mirror.
type LocalMessage struct {
	models.Message
	LocalID string
	State   MessageState

	attachment *Attachment
}

// LocalConversation is one entry of the local mirror. Key is the server id,
// or a temporary "local-" key until the server assigns one.
type LocalConversation struct {
	Key       string
	Title     string
	Messages  []LocalMessage
	UpdatedAt time.Time

	gen uint64 // Load generation that built the entry
}

// Temporary reports whether the entry has not been created on the server yet.
func (c *LocalConversation) Temporary() bool {
	return strings.HasPrefix(c.Key, tempKeyPrefix)
}

// DisplayTitle is the sidebar label for the conversation.
func (c *LocalConversation) DisplayTitle() string {
	msgs := make([]models.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.State != StateFailed && m.State != StateRetried {
			msgs = append(msgs, m.Message)
		}
	}
	return models.DisplayTitle(c.Title, msgs)
}

func (c *LocalConversation) clone() LocalConversation {
	out := *c
	out.Messages = make([]LocalMessage, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m
		out.Messages[i].Message = m.Message.Clone()
	}
	return out
}

func (c *LocalConversation) inFlight() bool {
	for _, m := range c.Messages {
		if m.State == StatePending {
			return true
		}
	}
	return false
}

func (c *LocalConversation) dropMessage(localID string) {
	for i := range c.Messages {
		if c.Messages[i].LocalID == localID {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return
		}
	}
}

func (c *LocalConversation) message(localID string) *LocalMessage {
	for i := range c.Messages {
		if c.Messages[i].LocalID == localID {
			return &c.Messages[i]
		}
	}
	return nil
}

// State is an immutable view of the session for rendering.
type State struct {
	Conversations []LocalConversation
	ActiveKey     string // Empty when nothing is selected or a first send is pending
	Sending       bool
	Loading       bool
}

// Active returns the selected conversation, if any.
func (s State) Active() (LocalConversation, bool) {
	for _, c := range s.Conversations {
		if c.Key == s.ActiveKey && s.ActiveKey != "" {
			return c, true
		}
	}
	return LocalConversation{}, false
}

type failedRef struct {
	key     string
	localID string
}

// Session mirrors the user's conversations and drives optimistic sends against the backend.
// Network calls are made without holding the lock.
type Session struct {
	api Backend
	log zerolog.Logger
	now func() time.Time

	mu         sync.Mutex
	convs      map[string]*LocalConversation
	order      []string
	activeKey  string
	sending    bool
	loading    bool
	loadGen    uint64
	lastFailed *failedRef
}

func NewSession(api Backend, log zerolog.Logger) *Session {
	return &Session{
		api:   api,
		log:   log.With().Str("component", "client-session").Logger(),
		now:   time.Now,
		convs: make(map[string]*LocalConversation),
	}
}

// Load re-fetches the full conversation list and replaces the mirror.
// Temporary entries and unsent messages survive the refresh.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	list, err := s.api.ListConversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load conversations")
		return err
	}

	s.loadGen++
	convs := make(map[string]*LocalConversation, len(list))
	order := make([]string, 0, len(list))

	// Temporary entries are newest and stay on top.
	for _, key := range s.order {
		if c := s.convs[key]; c != nil && c.Temporary() {
			convs[key] = c
			order = append(order, key)
		}
	}

	for _, sc := range list {
		key := sc.ID.String()
		entry := &LocalConversation{Key: key, Title: sc.Title, UpdatedAt: sc.UpdatedAt, gen: s.loadGen}
		for _, m := range sc.Messages {
			entry.Messages = append(entry.Messages, LocalMessage{Message: m.Clone(), LocalID: uuid.NewString()})
		}
		if old := s.convs[key]; old != nil {
			for _, m := range old.Messages {
				if m.State != StateSettled {
					entry.Messages = append(entry.Messages, m)
				}
			}
		}
		convs[key] = entry
		order = append(order, key)
	}

	s.convs = convs
	s.order = order

	if s.activeKey != "" && s.convs[s.activeKey] == nil {
		s.activeKey = ""
	}
	if s.activeKey == "" && !s.hasTemporaryLocked() {
		for _, key := range s.order {
			if c := s.convs[key]; c != nil && !c.Temporary() {
				s.activeKey = key
				break
			}
		}
	}
	return nil
}

// Select changes the active conversation locally. An empty key clears the selection.
// A temporary entry can be selected once its first send is no longer in flight.
func (s *Session) Select(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		s.activeKey = ""
		return nil
	}
	c := s.convs[key]
	if c == nil {
		return ErrUnknownConversation
	}
	if c.Temporary() && c.inFlight() {
		return ErrSendInFlight
	}
	s.activeKey = key
	return nil
}

// NewConversation creates a conversation on the server, re-fetches and selects it.
func (s *Session) NewConversation(ctx context.Context, title *string) (string, error) {
	created, err := s.api.CreateConversation(ctx, title)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create conversation")
		return "", err
	}
	if err := s.Load(ctx); err != nil {
		return "", err
	}

	key := created.ID.String()
	s.mu.Lock()
	if s.convs[key] != nil {
		s.activeKey = key
	}
	s.mu.Unlock()
	return key, nil
}

// Delete removes a conversation on the server and re-fetches. Temporary entries are dropped locally.
func (s *Session) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	c := s.convs[key]
	if c == nil {
		s.mu.Unlock()
		return ErrUnknownConversation
	}
	if c.Temporary() {
		s.removeLocked(key)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	id, err := uuid.Parse(key)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownConversation, key)
	}

	delErr := s.api.DeleteConversation(ctx, id)
	if delErr != nil {
		s.log.Error().Err(delErr).Str("conversation_id", key).Msg("failed to delete conversation")
	} else {
		s.mu.Lock()
		if s.activeKey == key {
			s.activeKey = ""
		}
		s.mu.Unlock()
	}

	if err := s.Load(ctx); err != nil && delErr == nil {
		return err
	}
	return delErr
}

// Send appends the user message optimistically and sends it to the active conversation.
// With no active conversation it continues a temporary entry whose first send failed,
// or starts one. The temporary entry is re-keyed once the server answers.
func (s *Session) Send(ctx context.Context, text string, att *Attachment) (*models.SendMessageResponse, error) {
	if strings.TrimSpace(text) == "" && (att == nil || len(att.Data) == 0) {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}

	key := s.activeKey
	if key == "" {
		key = s.temporaryKeyLocked()
	}
	if key == "" {
		key = tempKeyPrefix + uuid.NewString()
		s.convs[key] = &LocalConversation{Key: key, Title: models.DefaultConversationTitle, UpdatedAt: s.now()}
		s.order = append([]string{key}, s.order...)
	}
	return s.dispatchLocked(ctx, key, text, att)
}

// Retry re-sends the most recent failed message into the conversation it was sent from.
func (s *Session) Retry(ctx context.Context) (*models.SendMessageResponse, error) {
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	ref := s.lastFailed
	if ref == nil {
		s.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	c := s.convs[ref.key]
	var failed *LocalMessage
	if c != nil {
		failed = c.message(ref.localID)
	}
	if failed == nil || failed.State != StateFailed {
		s.lastFailed = nil
		s.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	failed.State = StateRetried
	return s.dispatchLocked(ctx, ref.key, failed.Text, failed.attachment)
}

// dispatchLocked is entered with s.mu held and returns with it released.
func (s *Session) dispatchLocked(ctx context.Context, key, text string, att *Attachment) (*models.SendMessageResponse, error) {
	entry := s.convs[key]
	localID := uuid.NewString()
	msg := LocalMessage{
		Message:    models.Message{Role: models.RoleUser, Text: text, CreatedAt: s.now()},
		LocalID:    localID,
		State:      StatePending,
		attachment: att,
	}
	entry.Messages = append(entry.Messages, msg)
	gen := entry.gen
	s.sending = true
	s.lastFailed = nil

	req := SendRequest{Text: text, Attachment: att}
	if !entry.Temporary() {
		id, err := uuid.Parse(key)
		if err == nil {
			req.ConversationID = &id
		}
	}
	s.mu.Unlock()

	resp, err := s.api.SendMessage(ctx, req)

	s.mu.Lock()
	s.sending = false

	entry = s.convs[key]
	if entry == nil {
		// Removed locally while in flight. The server still has the pair; the next Load shows it.
		s.mu.Unlock()
		s.log.Warn().Str("key", key).Msg("conversation removed while sending")
		return resp, err
	}
	pending := entry.message(localID)

	if err != nil {
		if pending != nil {
			pending.State = StateFailed
			s.lastFailed = &failedRef{key: key, localID: localID}
		}
		s.mu.Unlock()
		s.log.Error().Err(err).Str("key", key).Msg("failed to send message")
		return nil, err
	}

	if entry.gen != gen {
		// Rebuilt by a Load while in flight, possibly already holding the pair.
		// Only the server can tell, so drop the local copy and re-fetch.
		entry.dropMessage(localID)
		s.mu.Unlock()
		if loadErr := s.Load(ctx); loadErr != nil {
			s.log.Warn().Err(loadErr).Str("key", key).Msg("failed to refresh after concurrent load")
		}
		return resp, nil
	}

	if pending != nil {
		pending.State = StateSettled
		pending.File = resp.FileURL
	}
	now := s.now()
	entry.Messages = append(entry.Messages, LocalMessage{
		Message: models.Message{Role: models.RoleAssistant, Text: resp.Reply, CreatedAt: now},
		LocalID: uuid.NewString(),
	})
	entry.UpdatedAt = now

	newKey := resp.ConversationID.String()
	if newKey != key {
		s.rekeyLocked(key, newKey)
		if s.activeKey == "" || s.activeKey == key {
			s.activeKey = newKey
		}
	}
	s.moveToFrontLocked(newKey)
	s.mu.Unlock()
	return resp, nil
}

// rekeyLocked gives the entry under oldKey the server-assigned key, keeping its slot.
// A copy already fetched under newKey is replaced.
func (s *Session) rekeyLocked(oldKey, newKey string) {
	entry := s.convs[oldKey]
	if s.convs[newKey] != nil {
		s.removeLocked(newKey)
	}
	delete(s.convs, oldKey)
	entry.Key = newKey
	s.convs[newKey] = entry
	for i, k := range s.order {
		if k == oldKey {
			s.order[i] = newKey
		}
	}
}

func (s *Session) moveToFrontLocked(key string) {
	for i, k := range s.order {
		if k == key {
			copy(s.order[1:i+1], s.order[:i])
			s.order[0] = key
			return
		}
	}
}

func (s *Session) removeLocked(key string) {
	delete(s.convs, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeKey == key {
		s.activeKey = ""
	}
	if s.lastFailed != nil && s.lastFailed.key == key {
		s.lastFailed = nil
	}
}

// temporaryKeyLocked returns the key of a temporary entry that is not in flight, if any.
func (s *Session) temporaryKeyLocked() string {
	for _, key := range s.order {
		if c := s.convs[key]; c != nil && c.Temporary() && !c.inFlight() {
			return key
		}
	}
	return ""
}

func (s *Session) hasTemporaryLocked() bool {
	for _, c := range s.convs {
		if c.Temporary() {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Conversations: make([]LocalConversation, 0, len(s.order)),
		ActiveKey:     s.activeKey,
		Sending:       s.sending,
		Loading:       s.loading,
	}
	for _, key := range s.order {
		if c := s.convs[key]; c != nil {
			st.Conversations = append(st.Conversations, c.clone())
		}
	}
	return st
}
