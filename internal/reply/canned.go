package reply

import (
	"context"
	"regexp"
	"strings"
)

// Rule pairs a whole-input pattern with a fixed reply.
type Rule struct {
	Pattern *regexp.Regexp
	Reply   string
}

// NewRule compiles pattern case-insensitively and anchors it to the whole input.
func NewRule(pattern, reply string) Rule {
	return Rule{
		Pattern: regexp.MustCompile(`(?i)^(?:` + pattern + `)$`),
		Reply:   reply,
	}
}

// DefaultRules are the built-in identity answers.
func DefaultRules() []Rule {
	return []Rule{
		NewRule(`who made u\??`, "Durba Banerjee"),
		NewRule(`what\s*(is|'?s)?\s*(your|ur)\s*(name|anme)\??`, "AdGpt"),
	}
}

// CannedRules answers locally when the trimmed text matches a rule.
type CannedRules struct {
	rules []Rule
}

func NewCannedRules(rules ...Rule) *CannedRules {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &CannedRules{rules: rules}
}

func (c *CannedRules) Name() string { return "canned" }

func (c *CannedRules) Attempt(_ context.Context, in Input) (Result, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Result{}, nil
	}
	for _, r := range c.rules {
		if r.Pattern.MatchString(text) {
			return Result{Reply: r.Reply, Matched: true}, nil
		}
	}
	return Result{}, nil
}
