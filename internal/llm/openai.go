package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/logging"
)

// RawArgsKey holds the verbatim argument string of a tool call whose
// arguments were not a valid JSON object.
const RawArgsKey = "_raw"

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (SiliconFlow by default).
type OpenAIClient struct {
	client *openai.Client
	name   string
	log    *logging.Logger
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	Name    string // provider name used in errors and logs
	BaseURL string
	APIKey  string
}

// NewOpenAIClient creates a client for the given endpoint.
func NewOpenAIClient(opts OpenAIOptions, log *logging.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		name:   name,
		log:    log.Sub("llm." + name),
	}
}

func (c *OpenAIClient) Name() string { return c.name }

// chatRequest converts req into the wire request shared by Complete and
// Stream.
func (c *OpenAIClient) chatRequest(req CompletionRequest) openai.ChatCompletionRequest {
	oreq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.System, req.Messages),
		MaxTokens: req.Params.MaxTokens,
	}
	if req.Params.Temperature != nil {
		oreq.Temperature = float32(*req.Params.Temperature)
	}
	if len(req.Tools) > 0 {
		oreq.Tools = toOpenAITools(req.Tools)
		oreq.ToolChoice = "auto"
	}
	if rf := req.ResponseFormat; rf != nil {
		oreq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        rf.Name,
				Description: rf.Description,
				Schema:      jsonSchema(rf.Schema),
				Strict:      rf.Strict,
			},
		}
	}
	return oreq
}

// Complete sends a chat completion request and converts the first choice
// into an AI message.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.Params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Params.Timeout)
		defer cancel()
	}

	oreq := c.chatRequest(req)
	c.log.Debug().
		Str("model", req.Model).
		Int("messages", len(oreq.Messages)).
		Int("tools", len(oreq.Tools)).
		Bool("structured", oreq.ResponseFormat != nil).
		Msg("sending completion request")

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: c.name, Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	calls := fromOpenAIToolCalls(choice.Message.ToolCalls)
	msg := domain.AI(choice.Message.Content, calls...)

	usage := domain.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	model := resp.Model
	if model == "" {
		model = req.Model
	}

	return &CompletionResponse{
		Message:      msg,
		Model:        model,
		FinishReason: string(choice.FinishReason),
		Usage:        usage,
		Duration:     time.Since(start),
	}, nil
}

// Stream sends a streaming chat completion request. Text deltas arrive as
// StreamDelta events; tool call fragments are merged by index and delivered
// with the assembled response in the final StreamDone event.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	cancel := context.CancelFunc(func() {})
	if req.Params.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Params.Timeout)
	}

	oreq := c.chatRequest(req)
	oreq.Stream = true
	oreq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	c.log.Debug().
		Str("model", req.Model).
		Int("messages", len(oreq.Messages)).
		Int("tools", len(oreq.Tools)).
		Msg("sending streaming completion request")

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		cancel()
		return nil, c.wrapError(err)
	}

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer cancel()
		defer stream.Close()

		send := func(ev StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var acc streamAccumulator
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(StreamEvent{Type: StreamError, Err: c.wrapError(err)})
				return
			}
			if delta := acc.add(chunk); delta != "" {
				if !send(StreamEvent{Type: StreamDelta, Content: delta}) {
					return
				}
			}
		}

		resp := acc.response(req.Model)
		resp.Duration = time.Since(start)
		send(StreamEvent{Type: StreamDone, Response: resp})
	}()
	return ch, nil
}

// streamAccumulator assembles streamed chunks into one completion.
type streamAccumulator struct {
	content strings.Builder
	calls   []openai.ToolCall
	model   string
	finish  string
	usage   domain.Usage
}

// add folds chunk in and returns its text delta.
func (a *streamAccumulator) add(chunk openai.ChatCompletionStreamResponse) string {
	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if chunk.Usage != nil {
		a.usage = domain.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return ""
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		a.finish = string(choice.FinishReason)
	}
	for _, tc := range choice.Delta.ToolCalls {
		a.mergeCall(tc)
	}
	a.content.WriteString(choice.Delta.Content)
	return choice.Delta.Content
}

// mergeCall appends a tool call fragment to the call at its index. A
// fragment without an index starts a new call when it carries an id and
// continues the last one otherwise.
func (a *streamAccumulator) mergeCall(frag openai.ToolCall) {
	i := len(a.calls) - 1
	switch {
	case frag.Index != nil:
		i = max(*frag.Index, 0)
	case frag.ID != "" || i < 0:
		i = len(a.calls)
	}
	for len(a.calls) <= i {
		a.calls = append(a.calls, openai.ToolCall{Type: openai.ToolTypeFunction})
	}
	tc := &a.calls[i]
	if frag.ID != "" {
		tc.ID = frag.ID
	}
	if frag.Function.Name != "" {
		tc.Function.Name = frag.Function.Name
	}
	tc.Function.Arguments += frag.Function.Arguments
}

func (a *streamAccumulator) response(requested string) *CompletionResponse {
	model := a.model
	if model == "" {
		model = requested
	}
	return &CompletionResponse{
		Message:      domain.AI(a.content.String(), fromOpenAIToolCalls(a.calls)...),
		Model:        model,
		FinishReason: a.finish,
		Usage:        a.usage,
	}
}

// jsonSchema lets a plain schema map satisfy the json.Marshaler the wire
// request expects.
type jsonSchema map[string]any

func (s jsonSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: c.name, Message: apiErr.Message, Code: apiErr.HTTPStatusCode}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := "request failed"
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &ProviderError{Provider: c.name, Message: msg, Code: reqErr.HTTPStatusCode}
	}
	return &ProviderError{Provider: c.name, Message: err.Error()}
}

func toOpenAIMessages(system string, msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case domain.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case domain.RoleAI:
			om := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: encodeArgs(tc),
					},
				})
			}
			out = append(out, om)
		case domain.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func toOpenAITools(defs []ToolDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		params := d.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, domain.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: decodeArgs(tc.Function.Arguments),
		})
	}
	return out
}

// decodeArgs parses a tool call argument string. Anything that is not a JSON
// object is kept verbatim under RawArgsKey so the tool layer can reject it.
func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{RawArgsKey: raw}
	}
	return args
}

func encodeArgs(tc domain.ToolCall) string {
	if raw, ok := tc.Args[RawArgsKey].(string); ok && len(tc.Args) == 1 {
		return raw
	}
	return tc.ArgsJSON()
}

