// Package llm is the model gateway: one Invoke call per prompt, routed to the
// configured provider with retries and error classification.
package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"search-workers/internal/common/config"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
)

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func System(text string) Message { return Message{Role: RoleSystem, Text: text} }
func Human(text string) Message  { return Message{Role: RoleHuman, Text: text} }

type Options struct {
	Temperature float32
}

type Response struct {
	Text     string
	Provider string
}

// Gateway sends an ordered list of messages to a model and returns its text.
type Gateway interface {
	Invoke(ctx context.Context, messages []Message, opts Options) (*Response, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, messages []Message, opts Options) (*Response, error)

func (f GatewayFunc) Invoke(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	return f(ctx, messages, opts)
}

// Provider is a single model backend without retry handling.
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
}

// StatusError is a non-2xx reply from an HTTP provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable is true for throttling and server-side failures.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return !stderrors.Is(err, context.Canceled)
}

// Client wraps a Provider with a call timeout and exponential backoff.
type Client struct {
	provider   Provider
	timeout    time.Duration
	maxRetries int
	logger     logger.Logger
}

func NewClient(provider Provider, timeout time.Duration, maxRetries int, log logger.Logger) *Client {
	return &Client{
		provider:   provider,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     log.With(map[string]interface{}{"provider": provider.Name()}),
	}
}

func (c *Client) Provider() string {
	return c.provider.Name()
}

func (c *Client) Invoke(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.ModelCallDuration.WithLabelValues(c.provider.Name()).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, c.fail(ctx, ctx.Err())
			}
		}

		text, err := c.provider.Generate(ctx, messages, opts)
		if err == nil {
			metrics.ModelCalls.WithLabelValues(c.provider.Name(), "ok").Inc()
			return &Response{Text: text, Provider: c.provider.Name()}, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
		c.logger.Warn("model call failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return nil, c.fail(ctx, lastErr)
}

func (c *Client) fail(ctx context.Context, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.ModelCalls.WithLabelValues(c.provider.Name(), "timeout").Inc()
		return errors.NewLLMTimeoutError(c.provider.Name(), err)
	}
	metrics.ModelCalls.WithLabelValues(c.provider.Name(), "error").Inc()
	return errors.NewModelUnavailableError(c.provider.Name(), err)
}

// New builds the gateway for the named provider from configuration.
func New(ctx context.Context, cfg config.ModelConfig, name string, httpClient *http.Client, log logger.Logger) (*Client, error) {
	provider, err := NewProvider(ctx, name, cfg.Settings(name), httpClient)
	if err != nil {
		return nil, err
	}
	return NewClient(provider, config.GetDuration(cfg.Timeout), cfg.MaxRetries, log), nil
}

// NewProvider constructs a provider without retry handling.
func NewProvider(ctx context.Context, name string, settings config.ProviderConfig, httpClient *http.Client) (Provider, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var (
		provider Provider
		err      error
	)
	switch name {
	case config.ProviderOpenAI, config.ProviderGroq, config.ProviderDeepSeek:
		provider, err = NewOpenAICompatible(name, settings, httpClient)
	case config.ProviderGemini:
		provider, err = NewGemini(ctx, settings, httpClient)
	case config.ProviderService:
		provider, err = NewService(settings, httpClient)
	default:
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown model provider %q", name))
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}
