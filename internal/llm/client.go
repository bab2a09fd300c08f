// Package llm defines the completion endpoint interface, the OpenAI-compatible
// client that implements it, and the backend registry the router selects from.
package llm

import (
	"context"
	"time"

	"github.com/soyeahso/agentroute/internal/domain"
)

// Params are per-call generation parameters. Zero values mean "use the
// backend default".
type Params struct {
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"maxTokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Merge returns p with every zero field filled from def.
func (p Params) Merge(def Params) Params {
	if p.Temperature == nil {
		p.Temperature = def.Temperature
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = def.MaxTokens
	}
	if p.Timeout == 0 {
		p.Timeout = def.Timeout
	}
	return p
}

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema object
}

// ResponseFormat asks the model to answer with a JSON document matching
// Schema instead of free text.
type ResponseFormat struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"` // JSON Schema object
	Strict      bool           `json:"strict,omitempty"`
}

// CompletionRequest is the input to a Complete or Stream call.
type CompletionRequest struct {
	Model          string           `json:"model,omitempty"`
	System         string           `json:"system,omitempty"`
	Messages       []domain.Message `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat *ResponseFormat  `json:"responseFormat,omitempty"`
	Params         Params           `json:"params"`
}

// CompletionResponse is the result of a completion. Message is always an AI
// message and may carry tool calls.
type CompletionResponse struct {
	Message      domain.Message `json:"message"`
	Model        string         `json:"model,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
	Usage        domain.Usage   `json:"usage"`
	Duration     time.Duration  `json:"duration,omitempty"`
}

// Stream event types.
const (
	StreamDelta = "delta"
	StreamDone  = "done"
	StreamError = "error"
)

// StreamEvent is a chunk from a streaming completion.
type StreamEvent struct {
	Type    string `json:"type"`              // StreamDelta, StreamDone or StreamError
	Content string `json:"content,omitempty"` // text delta
	Err     error  `json:"-"`                 // set on StreamError

	// Response is the assembled completion, set on StreamDone.
	Response *CompletionResponse `json:"response,omitempty"`
}

// Client is the interface every completion endpoint implements.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "siliconflow").
	Name() string
}

// Streamer is implemented by clients that can stream a completion. The
// channel ends with exactly one StreamDone or StreamError event and is then
// closed.
type Streamer interface {
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}
