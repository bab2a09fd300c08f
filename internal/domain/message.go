// Package domain holds the conversation types shared by the router, the
// middleware chains, the conversation loop and the checkpoint stores.
package domain

import (
	"encoding/json"
	"time"
)

// Role tags a ConversationMessage variant.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleHuman, RoleAI, RoleTool:
		return true
	}
	return false
}

// Message is one entry of a conversation. It is a tagged union over Role:
// ToolCalls and Metadata are only set on AI messages, ToolCallID only on Tool
// messages.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCall        `json:"toolCalls,omitempty"`
	ToolCallID string            `json:"toolCallId,omitempty"`
	Metadata   *ResponseMetadata `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ToolCall is a model request to invoke a tool. ID is unique within a turn.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ArgsJSON returns the arguments encoded as a JSON object.
func (c ToolCall) ArgsJSON() string {
	if len(c.Args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(c.Args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ResponseMetadata records which backend model served an AI message.
type ResponseMetadata struct {
	ModelName    string `json:"modelName,omitempty"`
	Backend      string `json:"backend,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

// Constructors leave Timestamp zero; a checkpointer stamps messages when it
// stores them.

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Human builds a user message.
func Human(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AI builds an assistant message, optionally carrying tool calls.
func AI(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: calls}
}

// ToolResult builds the tool message answering the call with the given id.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// CloneMessages returns a copy of msgs whose backing array is not shared with
// the input, so appends on either side never alias.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
