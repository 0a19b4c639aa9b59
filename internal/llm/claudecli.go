package llm

import (
	"context"

	"github.com/moasq/swiftsmith/internal/claude"
)

// ClaudeCLI completes prompts through a locally installed Claude Code CLI,
// reusing its login instead of an API key.
type ClaudeCLI struct {
	client *claude.Client
}

// NewClaudeCLI creates a provider around the CLI at path.
func NewClaudeCLI(path, model string) *ClaudeCLI {
	c := claude.NewClient(path)
	if model != "" {
		c = c.WithModel(model)
	}
	return &ClaudeCLI{client: c}
}

func (c *ClaudeCLI) Name() string { return "claude-cli" }

func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Generate(ctx, prompt, claude.Options{})
	if err != nil {
		return "", err
	}
	if resp.Result == "" {
		return "", ErrEmptyResponse
	}
	return resp.Result, nil
}
