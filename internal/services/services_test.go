package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgpt-backend/internal/attachments"
	"adgpt-backend/internal/auth"
	"adgpt-backend/internal/config"
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/reply"
	"adgpt-backend/internal/store/memory"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAttachments struct {
	mu      sync.Mutex
	err     error
	stored  []string
	removed []string
}

func (f *fakeAttachments) Store(_ context.Context, _ uuid.UUID, a attachments.Attachment) (*attachments.Stored, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := attachments.RefPrefix + a.Filename
	f.stored = append(f.stored, ref)
	return &attachments.Stored{Key: a.Filename, Ref: ref, Size: int64(len(a.Data))}, nil
}

func (f *fakeAttachments) Remove(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ref)
	return nil
}

type fixture struct {
	store       *memory.MemoryStore
	completer   *fakeCompleter
	attachments *fakeAttachments
	ingestion   *IngestionService
	directory   *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewMemoryStore()
	fc := &fakeCompleter{reply: "hi there"}
	fa := &fakeAttachments{}
	chain := reply.NewChain(zerolog.Nop(), reply.NewCannedRules(), reply.NewUpstreamCompletion(fc))
	return &fixture{
		store:       st,
		completer:   fc,
		attachments: fa,
		ingestion:   NewIngestionService(st, fa, chain, zerolog.Nop()),
		directory:   NewConversationService(st, zerolog.Nop()),
	}
}

func TestSendMessage_CannedReplySkipsUpstream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	res, err := f.ingestion.SendMessage(ctx, owner, SendMessageInput{Text: "who made u?"})
	require.NoError(t, err)
	assert.Equal(t, "Durba Banerjee", res.Reply)
	assert.Zero(t, f.completer.Calls())
	assert.Nil(t, res.FileRef)

	conv, err := f.directory.Get(ctx, owner, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "who made u?", conv.Messages[0].Text)
	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "Durba Banerjee", conv.Messages[1].Text)
	assert.Equal(t, models.DefaultConversationTitle, conv.Title)
}

func TestSendMessage_ExistingConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := f.directory.Create(ctx, owner, nil)
	require.NoError(t, err)

	res, err := f.ingestion.SendMessage(ctx, owner, SendMessageInput{ConversationID: created.ID.String(), Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.ConversationID)
	assert.Equal(t, "hi there", res.Reply)
	assert.Equal(t, 1, f.completer.Calls())

	conv, err := f.directory.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "hello", conv.Messages[0].Text)
	assert.Equal(t, "hi there", conv.Messages[1].Text)

	list, err := f.directory.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSendMessage_UnknownOrForeignIDStartsNewConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	foreign, err := f.directory.Create(ctx, other, nil)
	require.NoError(t, err)

	for _, id := range []string{uuid.NewString(), foreign.ID.String(), "not-a-uuid"} {
		res, err := f.ingestion.SendMessage(ctx, owner, SendMessageInput{ConversationID: id, Text: "hello"})
		require.NoError(t, err)
		assert.NotEqual(t, foreign.ID, res.ConversationID)
	}

	untouched, err := f.directory.Get(ctx, other, foreign.ID)
	require.NoError(t, err)
	assert.Empty(t, untouched.Messages)

	mine, err := f.directory.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	for _, in := range []SendMessageInput{
		{},
		{Text: "   \n\t"},
		{Attachment: &attachments.Attachment{Filename: "empty.txt"}},
	} {
		_, err := f.ingestion.SendMessage(ctx, owner, in)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}

	_, err := f.ingestion.SendMessage(ctx, owner, SendMessageInput{
		Text:       "see attached",
		Attachment: &attachments.Attachment{Filename: "empty.txt", Data: []byte{}},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, attachments.ErrEmptyAttachment)
	assert.Empty(t, f.attachments.stored)

	list, err := f.directory.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, f.completer.Calls())
}

func TestSendMessage_AttachmentOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	res, err := f.ingestion.SendMessage(ctx, owner, SendMessageInput{
		Attachment: &attachments.Attachment{Filename: "cat.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	require.NotNil(t, res.FileRef)
	assert.Equal(t, "/uploads/cat.png", *res.FileRef)

	conv, err := f.directory.Get(ctx, owner, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "", conv.Messages[0].Text)
	require.NotNil(t, conv.Messages[0].File)
	assert.Equal(t, "/uploads/cat.png", *conv.Messages[0].File)
	assert.Nil(t, conv.Messages[1].File)
}

func TestSendMessage_UpstreamFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.completer.err = errors.New("upstream down")

	created, err := f.directory.Create(ctx, owner, nil)
	require.NoError(t, err)

	_, err = f.ingestion.SendMessage(ctx, owner, SendMessageInput{ConversationID: created.ID.String(), Text: "hello"})
	assert.ErrorIs(t, err, ErrUpstream)

	conv, err := f.directory.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)

	_, err = f.ingestion.SendMessage(ctx, owner, SendMessageInput{
		Text:       "look",
		Attachment: &attachments.Attachment{Filename: "a.txt", Data: []byte("x")},
	})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, []string{"/uploads/a.txt"}, f.attachments.removed)

	list, err := f.directory.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1, "no conversation is created on upstream failure")
}

// vanishingStore deletes the conversation right before the append reaches it.
type vanishingStore struct {
	*memory.MemoryStore
}

func (s vanishingStore) AppendMessages(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, messages []models.Message) (*models.Conversation, error) {
	if err := s.MemoryStore.DeleteConversation(ctx, id, ownerID); err != nil {
		return nil, err
	}
	return s.MemoryStore.AppendMessages(ctx, id, ownerID, messages)
}

func TestSendMessage_ConversationDeletedBeforeAppend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	ingestion := NewIngestionService(vanishingStore{f.store}, f.attachments, reply.NewChain(zerolog.Nop(), reply.NewUpstreamCompletion(f.completer)), zerolog.Nop())

	created, err := f.directory.Create(ctx, owner, nil)
	require.NoError(t, err)

	res, err := ingestion.SendMessage(ctx, owner, SendMessageInput{ConversationID: created.ID.String(), Text: "hello"})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, res.ConversationID)
	assert.Equal(t, "hi there", res.Reply)

	_, err = f.directory.Get(ctx, owner, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	conv, err := f.directory.Get(ctx, owner, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "hello", conv.Messages[0].Text)
	assert.Equal(t, "hi there", conv.Messages[1].Text)
}

func TestSendMessage_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.attachments.err = errors.New("disk full")

	_, err := f.ingestion.SendMessage(context.Background(), uuid.New(), SendMessageInput{
		Text:       "look",
		Attachment: &attachments.Attachment{Filename: "a.txt", Data: []byte("x")},
	})
	assert.ErrorIs(t, err, ErrStorage)
	assert.Zero(t, f.completer.Calls())
}

func TestSendMessage_ConcurrentSendsKeepPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	conv, err := f.directory.Create(ctx, owner, nil)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ingestion.SendMessage(ctx, owner, SendMessageInput{ConversationID: conv.ID.String(), Text: "hello"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.directory.Get(ctx, owner, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2*n)
	for i := 0; i < len(got.Messages); i += 2 {
		assert.Equal(t, models.RoleUser, got.Messages[i].Role)
		assert.Equal(t, models.RoleAssistant, got.Messages[i+1].Role)
	}
}

func TestConversationService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	blank := "  "
	c1, err := f.directory.Create(ctx, owner, &blank)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultConversationTitle, c1.Title)

	title := "Trip plans"
	c2, err := f.directory.Create(ctx, owner, &title)
	require.NoError(t, err)
	assert.Equal(t, "Trip plans", c2.Title)

	_, err = f.directory.Get(ctx, other, c1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.directory.Delete(ctx, other, c1.ID), ErrNotFound)

	require.NoError(t, f.directory.Delete(ctx, owner, c1.ID))
	assert.ErrorIs(t, f.directory.Delete(ctx, owner, c1.ID), ErrNotFound)
	_, err = f.directory.Get(ctx, owner, c1.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.directory.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c2.ID, list[0].ID)
}

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1}
	return NewAuthService(memory.NewMemoryStore(), auth.NewMemoryRevoker(), cfg, zerolog.Nop())
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ada", " Ada@Example.com ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "secret123", user.HashedPassword)

	_, err = svc.Register(ctx, "Ada", "ada@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	token, claims, got, err := svc.Login(ctx, "ADA@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.ID, got.ID)

	_, _, _, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := svc.CurrentUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
	_, err = svc.CurrentUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name, email, password string
	}{
		{"", "a@example.com", "secret123"},
		{"Ada", "", "secret123"},
		{"Ada", "not-an-email", "secret123"},
		{"Ada", "a@example.com", "123"},
	}
	for _, tt := range tests {
		_, err := svc.Register(ctx, tt.name, tt.email, tt.password)
		assert.ErrorIs(t, err, ErrValidation, "%+v", tt)
	}
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ada", "ada@example.com", "secret123")
	require.NoError(t, err)
	token, claims, _, err := svc.Login(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, got.ID)

	require.NoError(t, svc.Logout(ctx, got))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired, _, err := auth.NewAccessToken(uuid.New(), "test-secret", -time.Minute)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
