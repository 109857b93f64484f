package llmclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/voidmaw/webclaw/internal/config"
)

// AnthropicClient implements Client over the Anthropic messages API, with
// vision support for page screenshots.
type AnthropicClient struct {
	client *anthropic.Client
	config config.OracleConfig
	logger *zap.Logger
}

// NewAnthropicClient creates the client. The API key must be present; there
// is no anonymous mode.
func NewAnthropicClient(cfg config.OracleConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is not configured (set ANTHROPIC_API_KEY)")
	}
	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		config: cfg,
		logger: logger.Named("oracle.anthropic"),
	}, nil
}

// GenerateDecision sends the prompts to the API and returns the completion
// text, retrying transient failures with exponential backoff.
func (c *AnthropicClient) GenerateDecision(ctx context.Context, req Request) (string, error) {
	var content []anthropic.MessageContent
	if len(req.ScreenshotPNG) > 0 {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				"image/png",
				base64.StdEncoding.EncodeToString(req.ScreenshotPNG),
			),
		))
	}
	content = append(content, anthropic.NewTextMessageContent(req.UserPrompt))

	temperature := c.config.Temperature
	apiReq := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   c.config.MaxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
	}
	if req.SystemPrompt != "" {
		apiReq.MultiSystem = []anthropic.MessageSystemPart{
			{Type: "text", Text: req.SystemPrompt},
		}
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var responseContent string

	operation := func() error {
		callCtx := ctx
		if c.config.APITimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.config.APITimeout)
			defer cancel()
		}

		startTime := time.Now()
		resp, err := c.client.CreateMessages(callCtx, apiReq)
		duration := time.Since(startTime)

		if err != nil {
			return c.classifyError(err)
		}

		text := resp.GetFirstContentText()
		if text == "" {
			return backoff.Permanent(fmt.Errorf("anthropic API returned no text content (stop reason: %s)", resp.StopReason))
		}

		c.logger.Info("Oracle decision complete",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", resp.Usage.InputTokens),
			zap.Int("completion_tokens", resp.Usage.OutputTokens),
		)

		responseContent = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

// classifyError splits API failures into transient (retried) and permanent.
// Client-side mistakes like a bad key or malformed request never heal on
// retry; rate limits and server overload do.
func (c *AnthropicClient) classifyError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRateLimitErr() || apiErr.IsOverloadedErr() || apiErr.IsApiErr() {
			c.logger.Warn("Transient oracle error, retrying...", zap.Error(err))
			return err
		}
		c.logger.Error("Permanent oracle error", zap.Error(err))
		return backoff.Permanent(err)
	}

	if errors.Is(err, context.Canceled) {
		return backoff.Permanent(err)
	}

	// Timeouts and network-level failures are worth retrying; the outer
	// backoff context bounds the total attempt time.
	c.logger.Warn("Network error during oracle request, retrying...", zap.Error(err))
	return err
}
