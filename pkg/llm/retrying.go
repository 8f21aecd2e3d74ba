package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/retry"
)

// RetryingClient decorates a Client with backoff on transient endpoint
// failures (rate limits, gateway errors, resets). Permanent failures pass
// through on the first attempt.
type RetryingClient struct {
	inner  Client
	cfg    *retry.Config
	logger *zap.Logger
}

var _ Client = (*RetryingClient)(nil)

// NewRetryingClient wraps a client. A nil cfg uses retry.DefaultConfig.
func NewRetryingClient(inner Client, cfg *retry.Config, logger *zap.Logger) *RetryingClient {
	return &RetryingClient{
		inner:  inner,
		cfg:    cfg,
		logger: logger.Named("llm_retry"),
	}
}

// GenerateResponse implements Client.
func (c *RetryingClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	attempt := 0
	return retry.DoWithResult(ctx, c.cfg, func() (string, error) {
		attempt++
		response, err := c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
		if err != nil && retry.IsRetryable(err) {
			c.logger.Warn("transient LLM failure",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return response, err
	})
}

// GetModel implements Client.
func (c *RetryingClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint implements Client.
func (c *RetryingClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}
