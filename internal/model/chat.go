// Package model defines the chat-completion contract agent.llm_chat and its
// provider adapters (internal/model/anthropic, openai, google) implement.
package model

import "context"

// ChatModel is the interface agent.llm_chat invokes to turn a prompt into
// text. Each provider package adapts its SDK's request/response shape to
// this common contract; internal/model.MockChatModel implements it for
// tests with no network calls.
type ChatModel interface {
	// Chat sends messages and returns the completion. Implementations must
	// respect ctx cancellation and translate provider-specific errors into
	// plain errors the caller can wrap.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a conversation passed to Chat.
type Message struct {
	Role    string
	Content string
}

// Role values accepted in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may request via a ToolCall. Schema is
// JSON Schema for the tool's input parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is the result of a Chat call: generated text, requested tool
// calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
