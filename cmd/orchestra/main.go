// Command orchestra wires a small demo graph — fetch a page, analyze its
// body, render a chart from the analysis — through the orchestration
// engine, with every ambient concern (config, logging, persistence,
// metrics) enabled the way a real deployment would run it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wandorch/wand/internal/agents"
	"github.com/wandorch/wand/internal/condition"
	"github.com/wandorch/wand/internal/config"
	"github.com/wandorch/wand/internal/dag"
	"github.com/wandorch/wand/internal/dagrun"
	"github.com/wandorch/wand/internal/emit"
	"github.com/wandorch/wand/internal/model"
	"github.com/wandorch/wand/internal/model/anthropic"
	"github.com/wandorch/wand/internal/model/openai"
	"github.com/wandorch/wand/internal/obsmetrics"
	"github.com/wandorch/wand/internal/persistence"
	"github.com/wandorch/wand/internal/registry"
	"github.com/wandorch/wand/internal/retry"
	"github.com/wandorch/wand/internal/tools"
)

func main() {
	fmt.Println("=== Orchestra: fetch -> analyze -> chart ===")
	fmt.Println()

	cfg := config.Load()
	for _, w := range cfg.Validate() {
		log.Printf("config warning: %s", w)
	}

	agentRegistry := registry.NewAgentRegistry()
	mustRegister(agentRegistry.Register(agents.NewFetchAgent()))
	mustRegister(agentRegistry.Register(agents.NewAnalyzeAgent()))
	mustRegister(agentRegistry.Register(agents.NewChartAgent()))
	mustRegister(agentRegistry.Register(agents.NewLLMChat(chatModel(cfg))))

	toolRegistry := registry.NewToolRegistry()
	mustRegister(toolRegistry.Register(tools.NewHTTPFetcher()))
	mustRegister(toolRegistry.Register(tools.NewChartGenerator()))

	store, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open persistence store: %v", err)
	}
	defer store.Close()

	emitter := emit.NewFanout(emit.NewLogEmitter(os.Stdout), store)
	metrics := obsmetrics.New(nil)

	engine, err := dagrun.New(
		dagrun.WithAgents(agentRegistry),
		dagrun.WithTools(toolRegistry),
		dagrun.WithEmitter(emitter),
		dagrun.WithMetrics(metrics),
		dagrun.WithConcurrency(cfg.Execution.DefaultConcurrency),
		dagrun.WithDefaultTimeout(cfg.Execution.Timeout()),
		dagrun.WithDefaultRetry(retry.Policy{
			MaxAttempts: cfg.Execution.MaxRetries + 1,
			Base:        2 * time.Second,
			Factor:      cfg.Execution.RetryBackoffFactor,
			MaxDelay:    cfg.Execution.MaxDelay(),
		}),
	)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	g := demoGraph()
	runID := "r_" + uuid.NewString()[:8]

	ctx := context.Background()
	if err := store.SaveRunStart(ctx, runID, g.ID); err != nil {
		log.Fatalf("save run start: %v", err)
	}

	result, err := engine.Run(ctx, runID, g)
	if saveErr := store.SaveRunFinish(ctx, runID, string(result.Status), result.Outputs); saveErr != nil {
		log.Printf("save run finish: %v", saveErr)
	}
	if err != nil {
		log.Fatalf("run %s: %v", runID, err)
	}

	fmt.Printf("\nrun %s finished: %s\n", runID, result.Status)
	for id, out := range result.Outputs {
		fmt.Printf("  %s -> %v\n", id, out)
	}
}

func demoGraph() *dag.Graph {
	return &dag.Graph{
		ID: "fetch-analyze-chart",
		Nodes: []dag.NodeSpec{
			{ID: "fetch", AgentType: "agent.fetch", Params: map[string]any{"url": "https://example.com"}},
			{ID: "analyze", AgentType: "agent.analyze", Optional: true},
			{ID: "chart", AgentType: "agent.chart"},
		},
		Edges: []dag.EdgeSpec{
			{From: "fetch", To: "analyze", Map: map[string]string{"body": "body"}},
			{From: "analyze", To: "chart",
				Map:  map[string]string{"series": "insights"},
				Cond: &condition.Cond{Var: "series", Op: condition.OpContains, Value: 0}},
		},
		Sinks: []string{"chart"},
	}
}

// chatModel picks a real provider when a key is configured, falling back
// to a mock so the demo runs with zero configuration.
func chatModel(cfg config.Config) model.ChatModel {
	switch {
	case cfg.Providers.AnthropicAPIKey != "":
		return anthropic.NewChatModel(cfg.Providers.AnthropicAPIKey, "claude-3-haiku-20240307")
	case cfg.Providers.OpenAIAPIKey != "":
		return openai.NewChatModel(cfg.Providers.OpenAIAPIKey, "gpt-4o-mini")
	default:
		return &model.MockChatModel{Responses: []model.ChatOut{{Text: "(no provider configured)"}}}
	}
}

func mustRegister(err error) {
	if err != nil {
		log.Fatalf("register: %v", err)
	}
}
