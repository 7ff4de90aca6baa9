package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgpt-backend/internal/client"
	"adgpt-backend/internal/models"
)

type fakeBackend struct {
	convs   []models.ConversationResponse
	sendErr error
}

func (f *fakeBackend) ListConversations(context.Context) ([]models.ConversationResponse, error) {
	out := make([]models.ConversationResponse, len(f.convs))
	copy(out, f.convs)
	return out, nil
}

func (f *fakeBackend) CreateConversation(_ context.Context, title *string) (*models.ConversationResponse, error) {
	c := models.ConversationResponse{ID: uuid.New(), Title: models.DefaultConversationTitle, UpdatedAt: time.Now()}
	if title != nil {
		c.Title = *title
	}
	f.convs = append([]models.ConversationResponse{c}, f.convs...)
	return &c, nil
}

func (f *fakeBackend) DeleteConversation(_ context.Context, id uuid.UUID) error {
	for i, c := range f.convs {
		if c.ID == id {
			f.convs = append(f.convs[:i], f.convs[i+1:]...)
			return nil
		}
	}
	return &client.APIError{Status: 404, Message: "Conversation not found"}
}

func (f *fakeBackend) SendMessage(_ context.Context, req client.SendRequest) (*models.SendMessageResponse, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	id := uuid.New()
	if req.ConversationID != nil {
		id = *req.ConversationID
	}
	return &models.SendMessageResponse{Reply: "echo: " + req.Text, ConversationID: id}, nil
}

func runScript(t *testing.T, backend *fakeBackend, script string) string {
	t.Helper()
	out := &bytes.Buffer{}
	sess := client.NewSession(backend, zerolog.Nop())
	require.NoError(t, startREPL(context.Background(), sess, strings.NewReader(script), out))
	return out.String()
}

func TestREPL_SendAndList(t *testing.T) {
	out := runScript(t, &fakeBackend{}, "hello\n/new Ideas\n/list\n/quit\n")
	assert.Contains(t, out, "No conversations yet.")
	assert.Contains(t, out, "assistant: echo: hello")
	assert.Contains(t, out, "* 1. Ideas")
}

func TestREPL_Commands(t *testing.T) {
	backend := &fakeBackend{}
	out := runScript(t, backend, "/new First\n/new Second\n/use 2\n/delete 1\n/use 9\n/bogus\n")
	assert.Contains(t, out, "error: no conversation 9")
	assert.Contains(t, out, "error: unknown command /bogus")
	require.Len(t, backend.convs, 1)
	assert.Equal(t, "First", backend.convs[0].Title)
}

func TestREPL_FailedSendSuggestsRetry(t *testing.T) {
	backend := &fakeBackend{sendErr: errors.New("network down")}
	out := runScript(t, backend, "hello\n/retry\n")
	assert.Contains(t, out, "use /retry to resend")
	assert.Contains(t, out, "error: network down")
}
