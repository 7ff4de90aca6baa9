package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"adgpt-backend/internal/models"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Attachment is a file the user wants to send alongside a message.
type Attachment struct {
	Filename string
	Data     []byte
}

// SendRequest is one send-message call. A nil ConversationID asks the server to start a conversation.
type SendRequest struct {
	ConversationID *uuid.UUID
	Text           string
	Attachment     *Attachment
}

// API is a resty-backed client for the chat backend.
type API struct {
	http *resty.Client
}

func NewAPI(baseURL string, timeout time.Duration) *API {
	return &API{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(timeout),
	}
}

// SetToken sets the bearer token sent with every request.
func (a *API) SetToken(token string) {
	a.http.SetAuthToken(token)
}

func (a *API) Register(ctx context.Context, name, email, password string) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(models.RegisterRequest{Name: name, Email: email, Password: password}).
		SetError(&models.ErrorResponse{}).
		Post("/api/auth/register")
	return checkResponse(resp, err)
}

// Login authenticates and keeps the returned token for subsequent calls.
func (a *API) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(models.LoginRequest{Email: email, Password: password}).
		SetResult(&out).
		SetError(&models.ErrorResponse{}).
		Post("/api/auth/login")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	a.SetToken(out.AccessToken)
	return &out, nil
}

func (a *API) Logout(ctx context.Context) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetError(&models.ErrorResponse{}).
		Post("/api/auth/logout")
	if err := checkResponse(resp, err); err != nil {
		return err
	}
	a.SetToken("")
	return nil
}

func (a *API) ListConversations(ctx context.Context) ([]models.ConversationResponse, error) {
	var out []models.ConversationResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&models.ErrorResponse{}).
		Get("/api/conversations")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) CreateConversation(ctx context.Context, title *string) (*models.ConversationResponse, error) {
	var out models.ConversationResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(models.CreateConversationRequest{Title: title}).
		SetResult(&out).
		SetError(&models.ErrorResponse{}).
		Post("/api/conversations")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("id", id.String()).
		SetError(&models.ErrorResponse{}).
		Delete("/api/conversations/{id}")
	return checkResponse(resp, err)
}

// SendMessage posts the multipart send-message form.
func (a *API) SendMessage(ctx context.Context, req SendRequest) (*models.SendMessageResponse, error) {
	fields := map[string]string{"message": req.Text}
	if req.ConversationID != nil {
		fields["conversationId"] = req.ConversationID.String()
	}

	var out models.SendMessageResponse
	r := a.http.R().
		SetContext(ctx).
		SetMultipartFormData(fields).
		SetResult(&out).
		SetError(&models.ErrorResponse{})
	if req.Attachment != nil {
		r.SetFileReader("file", req.Attachment.Filename, bytes.NewReader(req.Attachment.Data))
	}

	resp, err := r.Post("/api/send-message")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	msg := http.StatusText(resp.StatusCode())
	if e, ok := resp.Error().(*models.ErrorResponse); ok && e.Error != "" {
		msg = e.Error
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}
