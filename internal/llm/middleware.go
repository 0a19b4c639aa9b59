package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Middleware decorates a Provider with a cross-cutting concern.
type Middleware func(Provider) Provider

// Wrap applies middlewares in left-to-right order:
// Wrap(p, A, B) == A(B(p)).
func Wrap(inner Provider, mws ...Middleware) Provider {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Retry --------

// Retry retries Complete up to maxAttempts with exponential backoff from
// baseDelay. Permanent errors and a done context stop immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Provider) Provider {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Provider
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if IsPermanent(err) {
			return "", err
		}
		last = err
		if i == r.max-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return "", last
}

// -------- Rate limiting --------

// RateLimit throttles calls to rps per second with the given burst. rps <= 0
// disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Provider) Provider {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Provider
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }

func (c *rateLimited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, prompt)
}

// -------- Timeout --------

// Timeout bounds each call. An expired call reports a timeout error that
// the router treats like any other provider failure.
func Timeout(d time.Duration) Middleware {
	return func(next Provider) Provider {
		if d <= 0 {
			return next
		}
		return &timeout{next: next, d: d}
	}
}

type timeout struct {
	next Provider
	d    time.Duration
}

func (t *timeout) Name() string { return t.next.Name() }

func (t *timeout) Complete(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	out, err := t.next.Complete(cctx, prompt)
	if err != nil && cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return "", fmt.Errorf("%s: llm call timed out after %s: %w", t.next.Name(), t.d, err)
	}
	return out, err
}

// -------- Cache --------

// Cache memoizes successful completions by prompt in an LRU of the given
// size. size <= 0 disables it.
func Cache(size int) Middleware {
	return func(next Provider) Provider {
		if size <= 0 {
			return next
		}
		c, err := lru.New[string, string](size)
		if err != nil {
			return next
		}
		return &cached{next: next, lru: c}
	}
}

type cached struct {
	next Provider
	lru  *lru.Cache[string, string]
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) Complete(ctx context.Context, prompt string) (string, error) {
	sum := sha256.Sum256([]byte(prompt))
	key := hex.EncodeToString(sum[:])
	if out, ok := c.lru.Get(key); ok {
		return out, nil
	}
	out, err := c.next.Complete(ctx, prompt)
	if err == nil {
		c.lru.Add(key, out)
	}
	return out, err
}

// -------- Logging --------

// Logging records request size, latency and failures for every call.
func Logging(logger zerolog.Logger) Middleware {
	return func(next Provider) Provider {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Provider
	log  zerolog.Logger
}

func (l *logging) Name() string { return l.next.Name() }

func (l *logging) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := l.next.Complete(ctx, prompt)
	ev := l.log.Debug()
	if err != nil {
		ev = l.log.Warn().Err(err)
	}
	ev.Str("provider", l.next.Name()).
		Int("prompt_bytes", len(prompt)).
		Int("response_bytes", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("llm call")
	return out, err
}
