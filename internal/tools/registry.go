// Package tools exposes the fixed catalogue of browser capabilities the
// decision loop may invoke. Each tool adapts a named capability to one or
// more protocol calls and returns a uniform Result.
package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/voidmaw/webclaw/internal/cdp"
	"github.com/voidmaw/webclaw/internal/config"
	"go.uber.org/zap"
)

// Protocol is the slice of the CDP client the tools need. Tests substitute a
// fake implementation.
type Protocol interface {
	Navigate(ctx context.Context, url string) (cdp.NavigateResult, error)
	Evaluate(ctx context.Context, expression string) (jsoniter.RawMessage, error)
	EvaluateString(ctx context.Context, expression string) (string, error)
	HasText(ctx context.Context, s string) (bool, error)
	DispatchKeyEvent(ctx context.Context, params map[string]interface{}) error
	DispatchMouseEvent(ctx context.Context, params map[string]interface{}) error
}

// Tool is one named capability with its oracle-facing description.
type Tool struct {
	Name        string
	Description string
	run         func(ctx context.Context, params map[string]interface{}) Result
}

// Registry holds the tool catalogue in a fixed order.
type Registry struct {
	browser   Protocol
	logger    *zap.Logger
	typeDelay time.Duration
	tools     []*Tool
	index     map[string]*Tool
}

// NewRegistry builds the catalogue over the given protocol client.
func NewRegistry(browser Protocol, cfg config.BrowserConfig, logger *zap.Logger) *Registry {
	r := &Registry{
		browser:   browser,
		logger:    logger.Named("tools"),
		typeDelay: cfg.TypeDelay,
		index:     make(map[string]*Tool),
	}
	r.registerAll()
	return r
}

func (r *Registry) register(t *Tool) {
	r.tools = append(r.tools, t)
	r.index[t.Name] = t
}

// Execute runs the named tool. An unknown name is a failed Result, not an
// error: the oracle is told and can correct itself.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) Result {
	tool, ok := r.index[name]
	if !ok {
		return Fail("unknown tool %q", name)
	}

	res := tool.run(ctx, params)
	if res.Success {
		r.logger.Debug("Tool succeeded", zap.String("tool", name))
	} else {
		r.logger.Debug("Tool failed", zap.String("tool", name), zap.String("reason", res.Error))
	}
	return res
}

// Names returns the tool names in catalogue order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Catalogue renders the tool list as prompt text, one line per tool.
func (r *Registry) Catalogue() string {
	var b strings.Builder
	for _, t := range r.tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// stringParam reads a string parameter, with a default for absent values.
func stringParam(params map[string]interface{}, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// intParam reads an integer parameter. JSON decoding yields float64, but the
// oracle occasionally quotes numbers, so strings are parsed too.
func intParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
