package agents

import (
	"context"
	"fmt"

	"github.com/wandorch/wand/internal/model"
	"github.com/wandorch/wand/internal/registry"
)

// LLMChat wraps a model.ChatModel as a registry.Agent: it sends the
// input "prompt" (optionally prefixed by a params "system" message) and
// publishes the model's reply under "text".
//
// This is the only home in the domain stack for the bundled provider
// adapters (anthropic, openai, google) — they are plug-in agents, not
// part of the core engine, so the engine itself never imports them.
type LLMChat struct {
	model model.ChatModel
}

// NewLLMChat wraps an already-constructed chat model.
func NewLLMChat(m model.ChatModel) *LLMChat {
	return &LLMChat{model: m}
}

func (a *LLMChat) Name() string            { return "agent.llm_chat" }
func (a *LLMChat) InputSchema() []string   { return []string{"prompt"} }
func (a *LLMChat) OutputSchema() []string  { return []string{"text"} }
func (a *LLMChat) RequiredTools() []string { return nil }

func (a *LLMChat) Run(ctx context.Context, locator registry.ToolLocator, params, input registry.Values) (registry.Values, error) {
	prompt, _ := input["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("agent.llm_chat: empty prompt")
	}

	var messages []model.Message
	if system, ok := params["system"].(string); ok && system != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: prompt})

	out, err := a.model.Chat(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("agent.llm_chat: %w", err)
	}
	return registry.Values{"text": out.Text}, nil
}
