package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5"
)

// Anthropic calls the Messages API directly.
type Anthropic struct {
	http      *http.Client
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
}

// NewAnthropic creates an Anthropic provider. Empty model and baseURL fall
// back to the defaults.
func NewAnthropic(apiKey, model, baseURL string) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &Anthropic{
		http:      &http.Client{Timeout: 5 * time.Minute},
		apiKey:    apiKey,
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: 16000,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	if a.apiKey == "" {
		return "", NewPermanentError(fmt.Errorf("anthropic: no API key configured"))
	}
	body, _ := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("anthropic: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(b)))
		if statusIsPermanent(resp.StatusCode) {
			return "", NewPermanentError(err)
		}
		return "", err
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("anthropic: failed to decode response: %w", err)
	}
	var sb strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
