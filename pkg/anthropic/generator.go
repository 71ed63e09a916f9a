package anthropic

import (
	"context"
	"errors"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-pipeline/internal/resilience"
)

// ErrEmptyResponse is returned when the model replies without text.
var ErrEmptyResponse = eris.New("anthropic: empty response")

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Model       string
	MaxTokens   int64
	MaxAttempts int
	Backoff     time.Duration // constant delay between attempts
	Timeout     time.Duration // per-attempt bound; default 30s
}

// DefaultTimeout bounds one CreateMessage attempt when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Generator turns a prompt and a system prompt into text, retrying transient
// API failures a fixed number of times.
type Generator struct {
	client Client
	cfg    GeneratorConfig
	retry  resilience.RetryConfig
}

// NewGenerator creates a Generator over client.
func NewGenerator(client Client, cfg GeneratorConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	retry := resilience.FromRetryConfig(cfg.MaxAttempts, int(cfg.Backoff.Milliseconds()), 1)
	retry.ShouldRetry = isRetryable
	retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	return &Generator{client: client, cfg: cfg, retry: retry}
}

// Generate implements the text-generation capability.
func (g *Generator) Generate(ctx context.Context, prompt, system string) (string, error) {
	req := MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		System:    system,
		Messages:  []Message{{Role: "user", Content: prompt}},
	}

	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*MessageResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		return g.client.CreateMessage(attemptCtx, req)
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}
	resp.Usage.LogCost(g.cfg.Model, "justification")

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// isRetryable treats API status errors by their status code and everything
// else by the shared transient classification.
func isRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
