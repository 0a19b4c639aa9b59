package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name, text string, calls *int32) Provider {
	return Func{ProviderName: name, Fn: func(context.Context, string) (string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return text, nil
	}}
}

func failing(name string, err error, calls *int32) Provider {
	return Func{ProviderName: name, Fn: func(context.Context, string) (string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return "", err
	}}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hi "},{"type":"text","text":"there"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	p := NewAnthropic("sk-test", "claude-test", srv.URL)
	out, err := p.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestAnthropicStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusBadRequest, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"nope"}`, tt.status)
			}))
			defer srv.Close()

			_, err := NewAnthropic("sk-test", "", srv.URL).Complete(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestAnthropicMissingKeyIsPermanent(t *testing.T) {
	_, err := NewAnthropic("", "", "http://127.0.0.1:1").Complete(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestOpenAICompatibleComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer xai-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"grok says hi"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewXAI("xai-key", "", srv.URL+"/v1")
	assert.Equal(t, "xai", p.Name())
	out, err := p.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "grok says hi", out)
}

func TestOpenAIUnauthorizedIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("bad", "", srv.URL+"/v1").Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestWrapOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Provider) Provider {
			return Func{ProviderName: next.Name(), Fn: func(ctx context.Context, p string) (string, error) {
				order = append(order, name)
				return next.Complete(ctx, p)
			}}
		}
	}
	p := Wrap(fixed("base", "ok", nil), tag("a"), tag("b"), tag("c"))
	_, err := p.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, "base", p.Name())
}

func TestRetryTransientThenSuccess(t *testing.T) {
	var calls int32
	inner := Func{ProviderName: "flaky", Fn: func(context.Context, string) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	}}
	out, err := Retry(3, time.Millisecond)(inner).Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	var calls int32
	inner := failing("p", NewPermanentError(errors.New("401")), &calls)
	_, err := Retry(5, time.Millisecond)(inner).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.EqualValues(t, 1, calls)
}

func TestCacheServesRepeatPrompts(t *testing.T) {
	var calls int32
	p := Cache(8)(fixed("p", "answer", &calls))
	for i := 0; i < 3; i++ {
		out, err := p.Complete(context.Background(), "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "answer", out)
	}
	assert.EqualValues(t, 1, calls)

	_, err := p.Complete(context.Background(), "other prompt")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
}

func TestCacheSkipsFailures(t *testing.T) {
	var calls int32
	p := Cache(8)(failing("p", errors.New("boom"), &calls))
	_, _ = p.Complete(context.Background(), "x")
	_, _ = p.Complete(context.Background(), "x")
	assert.EqualValues(t, 2, calls)
}

func TestTimeoutBoundsSlowProvider(t *testing.T) {
	slow := Func{ProviderName: "slow", Fn: func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	}}
	_, err := Timeout(20*time.Millisecond)(slow).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitHonorsContext(t *testing.T) {
	p := RateLimit(0.001, 1)(fixed("p", "ok", nil))
	_, err := p.Complete(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, "second")
	require.Error(t, err)
}

func TestStackTimeoutExcludesRateLimitWait(t *testing.T) {
	p := Stack(fixed("p", "ok", nil), StackOptions{RPS: 5, Timeout: 50 * time.Millisecond})

	_, err := p.Complete(context.Background(), "first")
	require.NoError(t, err)

	// The second call waits ~200ms for a token, longer than the timeout.
	start := time.Now()
	out, err := p.Complete(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Greater(t, time.Since(start), 100*time.Millisecond)
}

func TestRouterFallsBack(t *testing.T) {
	var first, second int32
	r := NewRouter([]Provider{
		failing("anthropic", errors.New("overloaded"), &first),
		fixed("openai", "from openai", &second),
	}, WithRules())

	c, err := r.Complete(context.Background(), Hint{}, "build me an app")
	require.NoError(t, err)
	assert.Equal(t, "from openai", c.Text)
	assert.Equal(t, "openai", c.Provider)
	assert.Equal(t, []string{"anthropic", "openai"}, c.Tried)
	assert.EqualValues(t, 1, first)
	assert.EqualValues(t, 1, second)
}

func TestRouterTreatsEmptyTextAsFailure(t *testing.T) {
	r := NewRouter([]Provider{fixed("a", "", nil), fixed("b", "ok", nil)}, WithRules())
	c, err := r.Complete(context.Background(), Hint{}, "x")
	require.NoError(t, err)
	assert.Equal(t, "b", c.Provider)
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter([]Provider{
		failing("a", errors.New("down"), nil),
		failing("b", NewPermanentError(errors.New("bad key")), nil),
	})
	_, err := r.Complete(context.Background(), Hint{}, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.Contains(t, err.Error(), "down")
	assert.Contains(t, err.Error(), "bad key")
}

func TestRouterEmptyChain(t *testing.T) {
	_, err := NewRouter(nil).Complete(context.Background(), Hint{}, "x")
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRouterRulesReorderChain(t *testing.T) {
	chain := []Provider{fixed("anthropic", "a", nil), fixed("openai", "o", nil), fixed("gemini", "g", nil)}
	r := NewRouter(chain)

	names := func(ps []Provider) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Name()
		}
		return out
	}
	assert.Equal(t, []string{"gemini", "openai", "anthropic"}, names(r.Route(Hint{Complexity: "simple"})))
	assert.Equal(t, []string{"anthropic", "openai", "gemini"}, names(r.Route(Hint{Complexity: "complex"})))
	assert.Equal(t, []string{"anthropic", "openai", "gemini"}, names(r.Route(Hint{Complexity: "moderate"})))

	custom := NewRouter(chain, WithRules(Rule{AppType: "game", Prefer: []string{"openai"}}))
	assert.Equal(t, []string{"openai", "anthropic", "gemini"}, names(custom.Route(Hint{AppType: "game"})))
	assert.Equal(t, []string{"anthropic", "openai", "gemini"}, custom.Providers())
}

func TestRouterStopsOnCancelledContext(t *testing.T) {
	var calls int32
	r := NewRouter([]Provider{fixed("a", "ok", &calls)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Complete(ctx, Hint{}, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, calls)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), Spec{Name: "mystery"})
	require.Error(t, err)

	p, err := NewProvider(context.Background(), Spec{Name: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}
