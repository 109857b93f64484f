package cdp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Target describes one debuggable target as reported by the browser's
// /json/list introspection endpoint.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Targets fetches the full target list from the browser's HTTP endpoint.
func (c *Client) Targets(ctx context.Context) ([]Target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/json/list", nil)
	if err != nil {
		return nil, fmt.Errorf("building target list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching target list from %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("target list request returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading target list response: %w", err)
	}

	var targets []Target
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("decoding target list: %w", err)
	}
	return targets, nil
}

// NormalizeDomain lowercases a host and strips a leading "www." so domain
// comparisons are stable across how sites present themselves.
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(domain), "www.")
}

// findPage picks a page target, preferring one whose URL contains the given
// domain. Internal chrome pages and blank tabs are skipped unless nothing
// else exists.
func findPage(targets []Target, domain string) (Target, bool) {
	var pages []Target
	for _, t := range targets {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		return Target{}, false
	}

	if domain != "" {
		want := NormalizeDomain(domain)
		for _, p := range pages {
			if strings.Contains(strings.ToLower(p.URL), want) {
				return p, true
			}
		}
	}

	for _, p := range pages {
		if !strings.HasPrefix(p.URL, "chrome://") && !strings.Contains(p.URL, "about:blank") {
			return p, true
		}
	}
	return pages[0], true
}
