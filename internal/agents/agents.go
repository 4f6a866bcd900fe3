// Package agents provides the bundled example Agents: agent.fetch,
// agent.analyze, and agent.chart, plus agent.llm_chat wrapping a
// provider-backed chat model.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/wandorch/wand/internal/registry"
)

// FetchAgent calls the "http_fetcher" tool and republishes its output
// under the keys downstream nodes expect.
type FetchAgent struct{}

func NewFetchAgent() *FetchAgent { return &FetchAgent{} }

func (a *FetchAgent) Name() string            { return "agent.fetch" }
func (a *FetchAgent) InputSchema() []string   { return nil }
func (a *FetchAgent) OutputSchema() []string  { return []string{"status", "body"} }
func (a *FetchAgent) RequiredTools() []string { return []string{"http_fetcher"} }

func (a *FetchAgent) Run(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
	url, _ := params["url"].(string)
	if url == "" {
		url, _ = input["url"].(string)
	}
	if url == "" {
		return nil, fmt.Errorf("agent.fetch: no url in params or input")
	}
	tool, err := locator.Get("http_fetcher")
	if err != nil {
		return nil, err
	}
	return tool.Invoke(ctx, registry.Values{"url": url})
}

// AnalyzeAgent is a pure-computation agent: it derives a handful of
// toy insights from a text input. It requires no tools.
type AnalyzeAgent struct{}

func NewAnalyzeAgent() *AnalyzeAgent { return &AnalyzeAgent{} }

func (a *AnalyzeAgent) Name() string            { return "agent.analyze" }
func (a *AnalyzeAgent) InputSchema() []string   { return []string{"body"} }
func (a *AnalyzeAgent) OutputSchema() []string  { return []string{"insights"} }
func (a *AnalyzeAgent) RequiredTools() []string { return nil }

func (a *AnalyzeAgent) Run(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
	text, _ := input["body"].(string)
	insights := []any{
		len(text),
		strings.Count(text, "AI"),
		42,
	}
	return registry.Values{"insights": insights}, nil
}

// ChartAgent calls the "chart_generator" tool over a numeric series.
type ChartAgent struct{}

func NewChartAgent() *ChartAgent { return &ChartAgent{} }

func (a *ChartAgent) Name() string            { return "agent.chart" }
func (a *ChartAgent) InputSchema() []string   { return []string{"series"} }
func (a *ChartAgent) OutputSchema() []string  { return []string{"chart_url", "points"} }
func (a *ChartAgent) RequiredTools() []string { return []string{"chart_generator"} }

func (a *ChartAgent) Run(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
	series, _ := input["series"].([]any)
	tool, err := locator.Get("chart_generator")
	if err != nil {
		return nil, err
	}
	return tool.Invoke(ctx, registry.Values{"series": series})
}
