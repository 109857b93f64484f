// Package llmclient provides the decision oracle transport: it turns one
// prepared prompt (plus an optional screenshot) into one raw text completion.
// Interpreting that text is the agent's job, not this package's.
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voidmaw/webclaw/internal/config"
)

// Request carries one oracle exchange.
type Request struct {
	SystemPrompt  string
	UserPrompt    string
	ScreenshotPNG []byte
}

// Client produces a raw completion for a decision request.
type Client interface {
	GenerateDecision(ctx context.Context, req Request) (string, error)
}

// New is a factory that creates a Client for the configured provider.
func New(cfg config.OracleConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported oracle provider %q. Supported: [%s]",
			cfg.Provider, config.ProviderAnthropic)
	}
}
