// Package tools provides the bundled example Tools: http_fetcher and
// chart_generator, exercised by the bundled example agents.
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wandorch/wand/internal/registry"
)

// HTTPFetcher implements registry.Tool as "http_fetcher": it issues an
// HTTP request and returns the response status and body.
//
// No third-party HTTP client is wired here — none of the example repos
// this module is grounded on pull in one (resty, req, ...), so net/http
// is the stdlib fallback, not a deliberate ecosystem choice.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with a bounded request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: 10 * time.Second}}
}

func (h *HTTPFetcher) Name() string { return "http_fetcher" }

func (h *HTTPFetcher) Invoke(ctx context.Context, input registry.Values) (registry.Values, error) {
	url, _ := input["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http_fetcher: missing url")
	}
	method, _ := input["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http_fetcher: build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http_fetcher: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http_fetcher: read body: %w", err)
	}

	return registry.Values{
		"status": resp.StatusCode,
		"body":   string(body),
	}, nil
}

// ChartGenerator implements registry.Tool as "chart_generator": a mock
// rendering tool standing in for a real charting backend, returning a
// fabricated chart location and the point count it "rendered".
type ChartGenerator struct{}

func NewChartGenerator() *ChartGenerator { return &ChartGenerator{} }

func (c *ChartGenerator) Name() string { return "chart_generator" }

func (c *ChartGenerator) Invoke(ctx context.Context, input registry.Values) (registry.Values, error) {
	series, _ := input["series"].([]any)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	return registry.Values{
		"chart_url": "s3://mock/chart.png",
		"points":    len(series),
	}, nil
}
