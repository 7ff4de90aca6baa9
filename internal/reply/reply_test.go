package reply

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestCannedRules(t *testing.T) {
	canned := NewCannedRules()
	tests := []struct {
		in      string
		reply   string
		matched bool
	}{
		{"who made u?", "Durba Banerjee", true},
		{"who made u", "Durba Banerjee", true},
		{"  WHO MADE U?  ", "Durba Banerjee", true},
		{"what is your name?", "AdGpt", true},
		{"whats ur name", "AdGpt", true},
		{"what's your anme", "AdGpt", true},
		{"What Is Your Name", "AdGpt", true},
		{"so who made u?", "", false},
		{"who made u? really", "", false},
		{"hello", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			res, err := canned.Attempt(context.Background(), Input{Text: tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.matched, res.Matched)
			assert.Equal(t, tt.reply, res.Reply)
		})
	}
}

func TestNewRule_AnchorsPattern(t *testing.T) {
	r := NewRule("hi", "hello")
	assert.True(t, r.Pattern.MatchString("HI"))
	assert.False(t, r.Pattern.MatchString("hi there"))
}

func TestNewRule_KeepsAnchorsAndEscapes(t *testing.T) {
	price := NewRule(`price in \$`, "ten")
	assert.True(t, price.Pattern.MatchString("price in $"))
	assert.False(t, price.Pattern.MatchString("price in "))

	anchored := NewRule(`^hi$`, "hello")
	assert.True(t, anchored.Pattern.MatchString("Hi"))
	assert.False(t, anchored.Pattern.MatchString("hi there"))
}

func TestUpstreamCompletion(t *testing.T) {
	t.Run("passes text through", func(t *testing.T) {
		fc := &fakeCompleter{reply: "hi there"}
		res, err := NewUpstreamCompletion(fc).Attempt(context.Background(), Input{Text: "hello"})
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.Equal(t, "hi there", res.Reply)
		assert.Equal(t, []string{"hello"}, fc.prompts)
	})

	t.Run("attachment only", func(t *testing.T) {
		fc := &fakeCompleter{reply: "nice file"}
		_, err := NewUpstreamCompletion(fc).Attempt(context.Background(), Input{AttachmentName: "cat.png"})
		require.NoError(t, err)
		assert.Equal(t, []string{AttachmentPrompt("cat.png")}, fc.prompts)
	})

	t.Run("error becomes ErrUpstream", func(t *testing.T) {
		fc := &fakeCompleter{err: errors.New("boom")}
		_, err := NewUpstreamCompletion(fc).Attempt(context.Background(), Input{Text: "hello"})
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("empty completion is a failure", func(t *testing.T) {
		fc := &fakeCompleter{reply: "  "}
		_, err := NewUpstreamCompletion(fc).Attempt(context.Background(), Input{Text: "hello"})
		assert.ErrorIs(t, err, ErrUpstream)
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("canned match skips upstream", func(t *testing.T) {
		fc := &fakeCompleter{reply: "should not be used"}
		chain := NewChain(zerolog.Nop(), NewCannedRules(), NewUpstreamCompletion(fc))
		reply, err := chain.Generate(ctx, Input{Text: "who made u?"})
		require.NoError(t, err)
		assert.Equal(t, "Durba Banerjee", reply)
		assert.Zero(t, fc.calls)
	})

	t.Run("falls through to upstream", func(t *testing.T) {
		fc := &fakeCompleter{reply: "hi there"}
		chain := NewChain(zerolog.Nop(), NewCannedRules(), NewUpstreamCompletion(fc))
		reply, err := chain.Generate(ctx, Input{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "hi there", reply)
		assert.Equal(t, 1, fc.calls)
	})

	t.Run("upstream failure propagates", func(t *testing.T) {
		fc := &fakeCompleter{err: errors.New("timeout")}
		chain := NewChain(zerolog.Nop(), NewCannedRules(), NewUpstreamCompletion(fc))
		_, err := chain.Generate(ctx, Input{Text: "hello"})
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("no match", func(t *testing.T) {
		chain := NewChain(zerolog.Nop(), NewCannedRules())
		_, err := chain.Generate(ctx, Input{Text: "hello"})
		assert.ErrorIs(t, err, ErrNoReply)
	})
}

func TestOpenAICompleter(t *testing.T) {
	var gotModel, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "gemini-2.5-flash", Timeout: 5 * time.Second})
	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
	assert.Equal(t, "gemini-2.5-flash", gotModel)
	assert.Equal(t, "Bearer k", gotAuth)
}

func TestOpenAICompleter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err := c.Complete(context.Background(), "hello")
	assert.Error(t, err)
}
