package config

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/llm"
	"github.com/moasq/swiftsmith/internal/secrets"
)

// apiKeyEnv lists the environment variables checked for each provider, in
// order.
var apiKeyEnv = map[string][]string{
	llm.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	llm.ProviderOpenAI:    {"OPENAI_API_KEY"},
	llm.ProviderXAI:       {"XAI_API_KEY"},
	llm.ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// APIKey returns the key for provider from the environment, then the secret
// store. store may be nil.
func APIKey(provider string, store secrets.Store) string {
	for _, env := range apiKeyEnv[provider] {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if store == nil {
		return ""
	}
	v, _ := secrets.Lookup(store, provider)
	return v
}

// ProviderSpecs returns the providers that can be constructed, in chain
// order. Providers without credentials are left out; claude-cli needs the
// claude binary.
func (c *Config) ProviderSpecs(store secrets.Store) []llm.Spec {
	var specs []llm.Spec
	for _, name := range c.Settings.Chain() {
		ps := c.Settings.Providers[name]
		spec := llm.Spec{Name: name, Model: ps.Model, BaseURL: ps.BaseURL}
		if name == llm.ProviderClaudeCLI {
			if c.ClaudePath == "" {
				continue
			}
			spec.Path = c.ClaudePath
		} else {
			spec.APIKey = APIKey(name, store)
			if spec.APIKey == "" {
				continue
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

// Router builds the LLM router from the configured chain, each provider
// wrapped in the standard middleware stack.
func (c *Config) Router(ctx context.Context, store secrets.Store, logger zerolog.Logger) (*llm.Router, error) {
	specs := c.ProviderSpecs(store)
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY, OPENAI_API_KEY, XAI_API_KEY or GEMINI_API_KEY, run 'swiftsmith keys set', or install the claude CLI", llm.ErrNoProvider)
	}
	stack := llm.StackOptions{
		Retries:   c.Settings.LLMRetries,
		RPS:       c.Settings.LLMRPS,
		Timeout:   c.Settings.LLMTimeout,
		CacheSize: c.Settings.CacheSize,
		Logger:    logger,
	}
	chain := make([]llm.Provider, 0, len(specs))
	for _, s := range specs {
		p, err := llm.NewProvider(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", s.Name, err)
		}
		chain = append(chain, llm.Stack(p, stack))
	}
	opts := []llm.RouterOption{llm.WithRouterLogger(logger)}
	if len(c.Settings.Rules) > 0 {
		opts = append(opts, llm.WithRules(c.Settings.Rules...))
	}
	return llm.NewRouter(chain, opts...), nil
}
