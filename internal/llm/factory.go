package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Provider names accepted by NewProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderXAI       = "xai"
	ProviderGemini    = "gemini"
	ProviderClaudeCLI = "claude-cli"
)

// KnownProviders lists every provider name in the default fallback order.
var KnownProviders = []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderXAI, ProviderClaudeCLI}

// Spec describes one provider to construct.
type Spec struct {
	Name    string
	Model   string
	BaseURL string
	APIKey  string
	// Path is the CLI binary for claude-cli.
	Path string
}

// NewProvider builds the provider named by s.Name.
func NewProvider(ctx context.Context, s Spec) (Provider, error) {
	switch s.Name {
	case ProviderAnthropic:
		return NewAnthropic(s.APIKey, s.Model, s.BaseURL), nil
	case ProviderOpenAI:
		return NewOpenAI(s.APIKey, s.Model, s.BaseURL), nil
	case ProviderXAI:
		return NewXAI(s.APIKey, s.Model, s.BaseURL), nil
	case ProviderGemini:
		return NewGemini(ctx, s.APIKey, s.Model, s.BaseURL)
	case ProviderClaudeCLI:
		if s.Path == "" {
			return nil, fmt.Errorf("claude-cli: claude binary not found")
		}
		return NewClaudeCLI(s.Path, s.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", s.Name)
	}
}

// StackOptions configures the middleware applied to every provider.
type StackOptions struct {
	Retries   int
	RPS       float64
	Timeout   time.Duration
	CacheSize int
	Logger    zerolog.Logger
}

// Stack wraps p with logging, caching, retries, rate limiting and a
// per-attempt timeout, outermost first. The timeout sits inside the limiter
// so waiting for a token never eats into the call's budget.
func Stack(p Provider, o StackOptions) Provider {
	return Wrap(p,
		Logging(o.Logger),
		Cache(o.CacheSize),
		Retry(o.Retries, 0),
		RateLimit(o.RPS, 1),
		Timeout(o.Timeout),
	)
}
