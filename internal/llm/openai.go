package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultXAIModel    = "grok-3"
	xaiBaseURL         = "https://api.x.ai/v1"
)

// OpenAI calls an OpenAI-compatible chat completions endpoint. xAI is served
// by the same client pointed at its base URL.
type OpenAI struct {
	name   string
	model  string
	hasKey bool
	client *openai.Client
}

// NewOpenAI creates a provider for api.openai.com or, with baseURL set, any
// compatible endpoint.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return newOpenAICompatible("openai", apiKey, model, baseURL)
}

// NewXAI creates a provider for xAI's Grok models.
func NewXAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = DefaultXAIModel
	}
	if baseURL == "" {
		baseURL = xaiBaseURL
	}
	return newOpenAICompatible("xai", apiKey, model, baseURL)
}

func newOpenAICompatible(name, apiKey, model, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		name:   name,
		model:  model,
		hasKey: apiKey != "",
		client: openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	if !o.hasKey {
		return "", NewPermanentError(fmt.Errorf("%s: no API key configured", o.name))
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		err = fmt.Errorf("%s: %w", o.name, err)
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && statusIsPermanent(apiErr.HTTPStatusCode) {
			return "", NewPermanentError(err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && statusIsPermanent(reqErr.HTTPStatusCode) {
			return "", NewPermanentError(err)
		}
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
