package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Hint is the advisory request classification used to order providers.
// It never decides whether a request can succeed.
type Hint struct {
	AppType    string
	Complexity string
}

// Rule moves the providers named in Prefer to the front of the chain when
// a hint matches. Empty fields match anything.
type Rule struct {
	Complexity string   `yaml:"complexity" toml:"complexity"`
	AppType    string   `yaml:"app_type" toml:"app_type"`
	Prefer     []string `yaml:"prefer" toml:"prefer"`
}

func (r Rule) matches(h Hint) bool {
	return (r.Complexity == "" || r.Complexity == h.Complexity) &&
		(r.AppType == "" || r.AppType == h.AppType)
}

// DefaultRules send complex apps to the strongest coding models first and
// simple ones to the cheaper providers.
func DefaultRules() []Rule {
	return []Rule{
		{Complexity: "complex", Prefer: []string{"anthropic", "claude-cli", "openai"}},
		{Complexity: "simple", Prefer: []string{"gemini", "openai", "xai"}},
	}
}

// Completion is a successful routed call.
type Completion struct {
	Text     string
	Provider string
	// Tried lists every provider called, in order, including the one that
	// answered.
	Tried []string
}

// Router walks a fallback chain of providers until one answers.
type Router struct {
	chain  []Provider
	rules  []Rule
	logger zerolog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

func WithRules(rules ...Rule) RouterOption {
	return func(r *Router) { r.rules = rules }
}

func WithRouterLogger(l zerolog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a Router over chain, in fallback order.
func NewRouter(chain []Provider, opts ...RouterOption) *Router {
	r := &Router{chain: chain, rules: DefaultRules(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the configured provider names in chain order.
func (r *Router) Providers() []string {
	names := make([]string, len(r.chain))
	for i, p := range r.chain {
		names[i] = p.Name()
	}
	return names
}

// Route returns the chain reordered for h: the first matching rule's
// preferred providers, then the rest in configured order.
func (r *Router) Route(h Hint) []Provider {
	var prefer []string
	for _, rule := range r.rules {
		if rule.matches(h) {
			prefer = rule.Prefer
			break
		}
	}
	out := make([]Provider, 0, len(r.chain))
	used := make([]bool, len(r.chain))
	for _, name := range prefer {
		for i, p := range r.chain {
			if !used[i] && p.Name() == name {
				used[i] = true
				out = append(out, p)
			}
		}
	}
	for i, p := range r.chain {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

// Complete tries each routed provider in turn. It fails with ErrNoProvider
// when all of them fail, and stops early when ctx is done.
func (r *Router) Complete(ctx context.Context, h Hint, prompt string) (Completion, error) {
	var c Completion
	var errs []error
	for _, p := range r.Route(h) {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		c.Tried = append(c.Tried, p.Name())
		text, err := p.Complete(ctx, prompt)
		if err == nil && text == "" {
			err = ErrEmptyResponse
		}
		if err != nil {
			r.logger.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		c.Text = text
		c.Provider = p.Name()
		return c, nil
	}
	if len(errs) == 0 {
		return c, ErrNoProvider
	}
	return c, fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
}
