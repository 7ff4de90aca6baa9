package reply

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"adgpt-backend/internal/metrics"
)

var (
	// ErrUpstream is returned when the completion backend fails or returns nothing usable.
	ErrUpstream = errors.New("upstream completion failed")
	// ErrNoReply is returned by Chain when no strategy produced a reply.
	ErrNoReply = errors.New("no strategy produced a reply")
)

// Input is what a strategy sees of an incoming user message.
type Input struct {
	Text           string
	AttachmentName string
}

// Result is the outcome of one strategy attempt. Reply is meaningful only when Matched is true.
type Result struct {
	Reply   string
	Matched bool
}

// Strategy produces an assistant reply, or declines with Matched false.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, in Input) (Result, error)
}

// Chain tries strategies in order and returns the first match.
type Chain struct {
	strategies []Strategy
	log        zerolog.Logger
}

func NewChain(log zerolog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		log:        log.With().Str("component", "reply-chain").Logger(),
	}
}

// Generate returns the reply text. Any strategy error stops the chain.
func (c *Chain) Generate(ctx context.Context, in Input) (string, error) {
	for _, s := range c.strategies {
		res, err := s.Attempt(ctx, in)
		if err != nil {
			metrics.RecordReplyFailure()
			c.log.Error().Err(err).Str("strategy", s.Name()).Msg("reply strategy failed")
			return "", fmt.Errorf("%s: %w", s.Name(), err)
		}
		if res.Matched {
			metrics.RecordReply(s.Name())
			c.log.Debug().Str("strategy", s.Name()).Msg("reply produced")
			return res.Reply, nil
		}
	}
	metrics.RecordReplyFailure()
	return "", ErrNoReply
}
