package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// JSString renders s as a quoted, escaped JavaScript string literal suitable
// for embedding in an expression.
func JSString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// evalResponse mirrors Runtime.evaluate's result envelope.
type evalResponse struct {
	Result struct {
		Type  string              `json:"type"`
		Value jsoniter.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails"`
}

// Evaluate runs a JavaScript expression in the page and returns its value as
// raw JSON. A thrown exception becomes an error.
func (c *Client) Evaluate(ctx context.Context, expression string) (jsoniter.RawMessage, error) {
	raw, err := c.Send(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return nil, err
	}

	var resp evalResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("cdp: decoding evaluate result: %w", err)
	}
	if resp.ExceptionDetails != nil {
		desc := resp.ExceptionDetails.Exception.Description
		if desc == "" {
			desc = resp.ExceptionDetails.Text
		}
		return nil, fmt.Errorf("cdp: script threw: %s", desc)
	}
	return resp.Result.Value, nil
}

// EvaluateString evaluates an expression expected to yield a string.
func (c *Client) EvaluateString(ctx context.Context, expression string) (string, error) {
	raw, err := c.Evaluate(ctx, expression)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("cdp: expected string result: %w", err)
	}
	return s, nil
}

// EvaluateBool evaluates an expression expected to yield a boolean.
func (c *Client) EvaluateBool(ctx context.Context, expression string) (bool, error) {
	raw, err := c.Evaluate(ctx, expression)
	if err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("cdp: expected boolean result: %w", err)
	}
	return b, nil
}

// NavigateResult reports how a navigation was satisfied.
type NavigateResult struct {
	URL       string
	Title     string
	ReusedTab bool
}

// Navigate loads a URL. A bare domain gets an https scheme. If another open
// tab is already on the target domain the client switches to that tab instead
// of loading the page again.
func (c *Client) Navigate(ctx context.Context, rawURL string) (NavigateResult, error) {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return NavigateResult{}, fmt.Errorf("cdp: invalid URL %q: %w", rawURL, err)
	}
	domain := NormalizeDomain(parsed.Hostname())

	// Prefer an existing tab already on this domain.
	if targets, terr := c.Targets(ctx); terr == nil {
		if page, ok := findPage(targets, domain); ok && domain != "" &&
			strings.Contains(strings.ToLower(page.URL), domain) {
			if err := c.attach(ctx, page); err != nil {
				return NavigateResult{}, err
			}
			c.logger.Info("Reusing existing tab", zap.String("domain", domain))
			return NavigateResult{URL: page.URL, Title: page.Title, ReusedTab: true}, nil
		}
	}

	if !c.Connected() {
		if err := c.Connect(ctx, ""); err != nil {
			return NavigateResult{}, err
		}
	}

	// Navigation does not wait for load completion. Waiting is a separate,
	// observable action chosen by the caller.
	if _, err := c.Send(ctx, "Page.navigate", map[string]interface{}{"url": rawURL}); err != nil {
		return NavigateResult{}, err
	}

	c.mu.Lock()
	c.target.URL = rawURL
	c.mu.Unlock()

	return NavigateResult{URL: rawURL}, nil
}

// Refresh re-reads the page's current URL and title from the live document.
func (c *Client) Refresh(ctx context.Context) error {
	href, err := c.EvaluateString(ctx, "location.href")
	if err != nil {
		return err
	}
	title, err := c.EvaluateString(ctx, "document.title")
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.target.URL = href
	c.target.Title = title
	c.mu.Unlock()
	return nil
}

// Screenshot captures the visible viewport as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	raw, err := c.Send(ctx, "Page.captureScreenshot", map[string]interface{}{"format": "png"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("cdp: decoding screenshot result: %w", err)
	}
	if resp.Data == "" {
		return nil, fmt.Errorf("cdp: screenshot returned no data")
	}

	img, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("cdp: screenshot data not valid base64: %w", err)
	}
	return img, nil
}

// PageText returns the page's visible text, truncated to limit runes when
// limit is positive.
func (c *Client) PageText(ctx context.Context, limit int) (string, error) {
	text, err := c.EvaluateString(ctx, "document.body.innerText")
	if err != nil {
		return "", err
	}
	if limit > 0 {
		runes := []rune(text)
		if len(runes) > limit {
			text = string(runes[:limit]) + "\n... [truncated]"
		}
	}
	return text, nil
}

// HasText reports whether the page's visible text contains s, case-insensitively.
func (c *Client) HasText(ctx context.Context, s string) (bool, error) {
	expr := fmt.Sprintf("document.body.innerText.toLowerCase().includes(%s)",
		JSString(strings.ToLower(s)))
	return c.EvaluateBool(ctx, expr)
}

// DispatchKeyEvent sends a raw Input.dispatchKeyEvent command.
func (c *Client) DispatchKeyEvent(ctx context.Context, params map[string]interface{}) error {
	_, err := c.Send(ctx, "Input.dispatchKeyEvent", params)
	return err
}

// DispatchMouseEvent sends a raw Input.dispatchMouseEvent command.
func (c *Client) DispatchMouseEvent(ctx context.Context, params map[string]interface{}) error {
	_, err := c.Send(ctx, "Input.dispatchMouseEvent", params)
	return err
}
