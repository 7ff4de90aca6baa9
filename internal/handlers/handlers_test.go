package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgpt-backend/internal/auth"
	"adgpt-backend/internal/models"
	"adgpt-backend/internal/services"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   string
	}{
		{fmt.Errorf("%w: message or file required", services.ErrInvalidRequest), http.StatusBadRequest, "invalid request: message or file required"},
		{services.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, "Unauthorized"},
		{services.ErrNotFound, http.StatusNotFound, "Conversation not found"},
		{services.ErrUserAlreadyExists, http.StatusConflict, services.ErrUserAlreadyExists.Error()},
		{fmt.Errorf("%w: disk full", services.ErrStorage), http.StatusInternalServerError, "Failed to store attachment"},
		{fmt.Errorf("%w: timeout", services.ErrUpstream), http.StatusBadGateway, "Failed to get response"},
		{fmt.Errorf("db down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondServiceError(rec, zerolog.Nop(), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.body, body.Error)
		})
	}
}

type recordingIngestion struct {
	got services.SendMessageInput
	res *services.SendMessageResult
	err error
}

func (r *recordingIngestion) SendMessage(_ context.Context, _ uuid.UUID, in services.SendMessageInput) (*services.SendMessageResult, error) {
	r.got = in
	return r.res, r.err
}

func authed(req *http.Request) *http.Request {
	claims := &auth.CustomClaims{UserID: uuid.New()}
	return req.WithContext(auth.WithIdentity(req.Context(), claims))
}

func TestHandleSendMessage_ParsesMultipart(t *testing.T) {
	convID := uuid.New()
	ing := &recordingIngestion{res: &services.SendMessageResult{Reply: "hi there", ConversationID: convID}}
	h := NewMessageHandlers(ing, 1<<20, zerolog.Nop())

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("conversationId", convID.String()))
	require.NoError(t, mw.WriteField("message", "hello"))
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("abc"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/send-message", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.HandleSendMessage(rec, authed(req))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, convID.String(), ing.got.ConversationID)
	assert.Equal(t, "hello", ing.got.Text)
	require.NotNil(t, ing.got.Attachment)
	assert.Equal(t, "notes.txt", ing.got.Attachment.Filename)
	assert.Equal(t, []byte("abc"), ing.got.Attachment.Data)

	var resp models.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hi there", resp.Reply)
	assert.Equal(t, convID, resp.ConversationID)
	assert.Nil(t, resp.FileURL)
}

func TestHandleSendMessage_NoFile(t *testing.T) {
	ing := &recordingIngestion{err: fmt.Errorf("%w: message or file required", services.ErrInvalidRequest)}
	h := NewMessageHandlers(ing, 1<<20, zerolog.Nop())

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("message", ""))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/send-message", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.HandleSendMessage(rec, authed(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, ing.got.Attachment)
	assert.Contains(t, rec.Body.String(), "Message or file required")
}

func TestHandleSendMessage_RequiresIdentity(t *testing.T) {
	h := NewMessageHandlers(&recordingIngestion{}, 0, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.HandleSendMessage(rec, httptest.NewRequest(http.MethodPost, "/api/send-message", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
