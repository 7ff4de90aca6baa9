package reply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"adgpt-backend/internal/metrics"
)

// Completer turns a prompt into completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AttachmentPrompt is sent in place of empty text when only a file was uploaded.
func AttachmentPrompt(filename string) string {
	return fmt.Sprintf("The user sent a file named %q without any message.", filename)
}

// UpstreamCompletion delegates to a Completer and always matches on success.
type UpstreamCompletion struct {
	completer Completer
}

func NewUpstreamCompletion(c Completer) *UpstreamCompletion {
	return &UpstreamCompletion{completer: c}
}

func (u *UpstreamCompletion) Name() string { return "upstream" }

func (u *UpstreamCompletion) Attempt(ctx context.Context, in Input) (Result, error) {
	prompt := in.Text
	if strings.TrimSpace(prompt) == "" && in.AttachmentName != "" {
		prompt = AttachmentPrompt(in.AttachmentName)
	}

	start := time.Now()
	text, err := u.completer.Complete(ctx, prompt)
	metrics.RecordUpstream(time.Since(start).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: empty completion", ErrUpstream)
	}
	return Result{Reply: text, Matched: true}, nil
}

// OpenAIConfig holds settings for an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAICompleter calls an OpenAI-compatible chat completion API.
type OpenAICompleter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAICompleter{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
