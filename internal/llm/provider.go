// Package llm talks to text-completion providers and routes a request
// through a fallback chain of them.
package llm

import (
	"context"
	"errors"
)

// ErrNoProvider is returned when every provider in the chain failed or none
// is configured.
var ErrNoProvider = errors.New("no LLM provider available")

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Provider completes a prompt. The returned text has no guaranteed
// structure.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// PermanentError marks a failure that retrying the same provider cannot fix
// (bad credentials, rejected request).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is or wraps a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// statusIsPermanent reports whether an HTTP status will not change on retry.
func statusIsPermanent(code int) bool {
	return code >= 400 && code < 500 && code != 408 && code != 429
}

// Func adapts a function to Provider, mostly for tests and fakes.
type Func struct {
	ProviderName string
	Fn           func(ctx context.Context, prompt string) (string, error)
}

func (f Func) Name() string { return f.ProviderName }

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f.Fn(ctx, prompt)
}
