// Package claude runs the Claude Code CLI as a one-shot completion backend.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Client wraps the Claude Code CLI in print mode.
type Client struct {
	claudePath string
	model      string // default model override (empty = let claude decide)
	run        func(cmd *exec.Cmd) error
}

// NewClient creates a new Claude Code client.
func NewClient(claudePath string) *Client {
	return &Client{
		claudePath: claudePath,
		run:        func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// WithModel returns a copy of the client with a specific model.
func (c *Client) WithModel(model string) *Client {
	cp := *c
	cp.model = MapModelName(model)
	return &cp
}

// Options holds options for a Generate call.
type Options struct {
	SystemPrompt string
	MaxTurns     int    // max agentic turns (default 1)
	Model        string // model override for this call
	WorkDir      string // working directory for the claude process
}

// Usage holds token usage data from a Claude response.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// Response represents the parsed response from Claude Code.
type Response struct {
	Result       string  `json:"result"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	SessionID    string  `json:"session_id"`
	NumTurns     int     `json:"num_turns"`
	Usage        Usage   `json:"usage"`
}

// args builds the CLI arguments for one print-mode call.
func (c *Client) args(opts Options) []string {
	maxTurns := opts.MaxTurns
	if maxTurns == 0 {
		maxTurns = 1
	}
	args := []string{"-p", "--max-turns", fmt.Sprintf("%d", maxTurns), "--output-format", "json"}
	if opts.SystemPrompt != "" {
		args = append(args, "--system-prompt", opts.SystemPrompt)
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

// Generate sends a prompt to Claude Code and returns the response.
func (c *Client) Generate(ctx context.Context, userMessage string, opts Options) (*Response, error) {
	cmd := exec.CommandContext(ctx, c.claudePath, c.args(opts)...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	// Strip CLAUDECODE env var to allow nested sessions
	cmd.Env = filterEnv(os.Environ(), "CLAUDECODE")

	// Pass user message via stdin to avoid argument length limits
	cmd.Stdin = strings.NewReader(userMessage)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := c.run(cmd); err != nil {
		return nil, fmt.Errorf("claude command failed: %w\nstderr: %s", err, stderr.String())
	}

	return parseResponse(stdout.Bytes())
}

// filterEnv returns env with the named variable removed.
func filterEnv(env []string, name string) []string {
	prefix := name + "="
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

type resultEvent struct {
	Type      string  `json:"type"`
	Subtype   string  `json:"subtype"`
	SessionID string  `json:"session_id"`
	Result    string  `json:"result"`
	CostUSD   float64 `json:"cost_usd"`
	TotalCost float64 `json:"total_cost_usd"`
	NumTurns  int     `json:"num_turns"`
	IsError   bool    `json:"is_error"`
	Usage     Usage   `json:"usage"`
}

func (ev resultEvent) response() *Response {
	cost := ev.TotalCost
	if cost == 0 {
		cost = ev.CostUSD
	}
	return &Response{
		Result:       ev.Result,
		TotalCostUSD: cost,
		SessionID:    ev.SessionID,
		NumTurns:     ev.NumTurns,
		Usage:        ev.Usage,
	}
}

// parseResponse extracts the result from Claude Code's output, which is a
// single JSON object, a JSON array of events, or newline-delimited events.
// Anything else is returned as plain text.
func parseResponse(data []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(data)

	var single resultEvent
	if err := json.Unmarshal(trimmed, &single); err == nil && single.Result != "" {
		if single.IsError {
			return nil, fmt.Errorf("claude returned error: %s", single.Result)
		}
		return single.response(), nil
	}

	var events []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			events = nil
		}
	} else if lines := bytes.Split(trimmed, []byte("\n")); len(lines) > 1 {
		for _, line := range lines {
			if line = bytes.TrimSpace(line); len(line) > 0 {
				events = append(events, json.RawMessage(line))
			}
		}
	}
	if len(events) > 0 {
		return extractResultFromEvents(events)
	}

	return &Response{Result: strings.TrimSpace(string(data))}, nil
}

// extractResultFromEvents finds the last result event in a stream of Claude
// Code events.
func extractResultFromEvents(events []json.RawMessage) (*Response, error) {
	var sessionID string
	var last *Response

	for _, raw := range events {
		var ev resultEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if ev.Type == "system" && ev.Subtype == "init" && ev.SessionID != "" {
			sessionID = ev.SessionID
		}
		if ev.Type == "result" || ev.Result != "" {
			if ev.IsError {
				return nil, fmt.Errorf("claude returned error: %s", ev.Result)
			}
			last = ev.response()
		}
	}

	if last == nil {
		return &Response{SessionID: sessionID}, nil
	}
	if last.SessionID == "" {
		last.SessionID = sessionID
	}
	return last, nil
}
